// Package models contains the GORM persistence models of the returns service.
// Domain types carry no ORM tags; each model maps to and from its domain type.
//
// Tables owned by this service: return_orders, tracking_history, outbox_events.
// order_items and customers belong to other subsystems and are only read.
package models
