package courier

// pickupShipment is one package in a reverse pickup request
type pickupShipment struct {
	Waybill         string  `json:"waybill,omitempty"`
	OrderReference  string  `json:"order"`
	Name            string  `json:"name"`
	Phone           string  `json:"phone"`
	Address         string  `json:"add"`
	City            string  `json:"city"`
	State           string  `json:"state"`
	Pincode         string  `json:"pin"`
	ProductsDesc    string  `json:"products_desc"`
	Quantity        int     `json:"quantity"`
	WeightGrams     int     `json:"weight"`
	LengthCm        float64 `json:"shipment_length"`
	WidthCm         float64 `json:"shipment_width"`
	HeightCm        float64 `json:"shipment_height"`
	PaymentMode     string  `json:"payment_mode"`
	PickupDate      string  `json:"pickup_date"`
	ReturnWarehouse string  `json:"return_name,omitempty"`
}

type pickupRequestBody struct {
	PickupLocation string           `json:"pickup_location,omitempty"`
	Shipments      []pickupShipment `json:"shipments"`
}

type pickupPackage struct {
	Waybill string   `json:"waybill"`
	Status  string   `json:"status"`
	Remarks []string `json:"remarks"`
}

type pickupResponseBody struct {
	Success  bool            `json:"success"`
	Error    string          `json:"rmk"`
	Packages []pickupPackage `json:"packages"`
}

// waybill returns the first assigned waybill, if any
func (r *pickupResponseBody) waybill() string {
	for _, p := range r.Packages {
		if p.Waybill != "" {
			return p.Waybill
		}
	}
	return ""
}
