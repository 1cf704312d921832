package fulfillment

// ServiceDef describes one orderable service: the public reference used by
// clients, the panel-side service id, and the pricing/quantity bounds.
type ServiceDef struct {
	Ref         string `json:"service_id"`
	PanelID     string `json:"-"`
	Name        string `json:"name"`
	Category    string `json:"category"`
	RatePer1000 int64  `json:"rate_per_1000"`
	MinQuantity int64  `json:"min_quantity"`
	MaxQuantity int64  `json:"max_quantity"`
}

// Price returns the charge for a quantity, rounded up to the next so'm.
func (s ServiceDef) Price(quantity int64) int64 {
	return (quantity*s.RatePer1000 + 999) / 1000
}

var catalog = []ServiceDef{
	{Ref: "ig_followers", PanelID: "1001", Name: "Instagram Followers", Category: "Instagram", RatePer1000: 25000, MinQuantity: 100, MaxQuantity: 50000},
	{Ref: "ig_likes", PanelID: "1002", Name: "Instagram Likes", Category: "Instagram", RatePer1000: 8000, MinQuantity: 50, MaxQuantity: 100000},
	{Ref: "ig_views", PanelID: "1003", Name: "Instagram Video Views", Category: "Instagram", RatePer1000: 3000, MinQuantity: 100, MaxQuantity: 1000000},
	{Ref: "tg_members", PanelID: "2001", Name: "Telegram Channel Members", Category: "Telegram", RatePer1000: 35000, MinQuantity: 100, MaxQuantity: 30000},
	{Ref: "tg_views", PanelID: "2002", Name: "Telegram Post Views", Category: "Telegram", RatePer1000: 1500, MinQuantity: 100, MaxQuantity: 500000},
	{Ref: "tt_followers", PanelID: "3001", Name: "TikTok Followers", Category: "TikTok", RatePer1000: 30000, MinQuantity: 100, MaxQuantity: 50000},
	{Ref: "tt_likes", PanelID: "3002", Name: "TikTok Likes", Category: "TikTok", RatePer1000: 7000, MinQuantity: 50, MaxQuantity: 200000},
	{Ref: "yt_subscribers", PanelID: "4001", Name: "YouTube Subscribers", Category: "YouTube", RatePer1000: 120000, MinQuantity: 50, MaxQuantity: 20000},
	{Ref: "yt_views", PanelID: "4002", Name: "YouTube Views", Category: "YouTube", RatePer1000: 10000, MinQuantity: 500, MaxQuantity: 1000000},
}

// Catalog returns the orderable service definitions.
func Catalog() []ServiceDef {
	out := make([]ServiceDef, len(catalog))
	copy(out, catalog)
	return out
}

// LookupService finds a catalog entry by its public reference.
func LookupService(ref string) (ServiceDef, bool) {
	for _, svc := range catalog {
		if svc.Ref == ref {
			return svc, true
		}
	}
	return ServiceDef{}, false
}
