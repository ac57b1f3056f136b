package catalog

import "strings"

type Group string

const (
	GroupMain     Group = "main"
	GroupOther    Group = "other"
	GroupExternal Group = "external"
	GroupAndroid  Group = "android"
)

type GroupInfo struct {
	Group Group
	Title string
	Color int
}

// Groups is the dashboard order.
var Groups = []GroupInfo{
	{Group: GroupMain, Title: "Main Products", Color: 0x3b82f6},
	{Group: GroupOther, Title: "Other Products", Color: 0xff0ae2},
	{Group: GroupExternal, Title: "External Products", Color: 0x3b82f6},
	{Group: GroupAndroid, Title: "Android Products", Color: 0x22c55e},
}

type Product struct {
	ID       string
	Name     string
	RoleName string
	Color    int
	Group    Group
	// Aliases are lower-case substrings matched against order line item names.
	Aliases []string
	// StatusName is the title used by the third-party status API.
	StatusName string
	BuyLink    string
}

const storeURL = "https://robloxcheatz.com/product?id="

var Products = []Product{
	{ID: "wave", Name: "Wave", RoleName: "Wave Buyer", Color: 0x3b82f6, Group: GroupMain,
		Aliases: []string{"wave"}, StatusName: "wave", BuyLink: storeURL + "6d1f91b5-4599-467a-b9ba-eadef98c63fe"},
	{ID: "seliware", Name: "Seliware", RoleName: "Seliware Buyer", Color: 0xec4899, Group: GroupMain,
		Aliases: []string{"seliware"}, StatusName: "seliware", BuyLink: storeURL + "51c9587f-4794-46ef-b6bf-2bd9f13c17d2"},
	{ID: "matcha", Name: "Matcha", RoleName: "Matcha Buyer", Color: 0x84cc16, Group: GroupMain,
		Aliases: []string{"matcha"}, StatusName: "matcha", BuyLink: storeURL + "matcha"},
	{ID: "potassium", Name: "Potassium", RoleName: "Potassium Buyer", Color: 0xff0ae2, Group: GroupOther,
		Aliases: []string{"potassium"}, StatusName: "potassium", BuyLink: storeURL + "potassium"},
	{ID: "bunni", Name: "Bunni", RoleName: "Bunni Buyer", Color: 0xff0ae2, Group: GroupOther,
		Aliases: []string{"bunni", "bunni.lol"}, StatusName: "bunni.lol", BuyLink: storeURL + "178fa9f7-f297-41d2-b654-274ed11d3b54"},
	{ID: "volt", Name: "Volt", RoleName: "Volt Buyer", Color: 0xff0ae2, Group: GroupOther,
		Aliases: []string{"volt"}, StatusName: "volt", BuyLink: storeURL + "volt"},
	{ID: "volcano", Name: "Volcano", RoleName: "Volcano Buyer", Color: 0xff0ae2, Group: GroupOther,
		Aliases: []string{"volcano"}, StatusName: "volcano", BuyLink: storeURL + "volcano"},
	{ID: "serotonin", Name: "Serotonin", RoleName: "Serotonin Buyer", Color: 0x3b82f6, Group: GroupExternal,
		Aliases: []string{"serotonin"}, StatusName: "serotonin", BuyLink: storeURL + "serotonin"},
	{ID: "isabelle", Name: "Isabelle", RoleName: "Isabelle Buyer", Color: 0x3b82f6, Group: GroupExternal,
		Aliases: []string{"isabelle"}, StatusName: "isabelle", BuyLink: storeURL + "isabelle"},
	{ID: "ronin", Name: "Ronin", RoleName: "Ronin Buyer", Color: 0x3b82f6, Group: GroupExternal,
		Aliases: []string{"ronin"}, StatusName: "ronin", BuyLink: storeURL + "d85e5584-8469-4bd3-be6a-1f616f2959dd"},
	{ID: "yerba", Name: "Yerba", RoleName: "Yerba Buyer", Color: 0x3b82f6, Group: GroupExternal,
		Aliases: []string{"yerba"}, StatusName: "yerba", BuyLink: storeURL + "yerba"},
	{ID: "codex", Name: "Codex", RoleName: "Codex Buyer", Color: 0x22c55e, Group: GroupAndroid,
		Aliases: []string{"codex"}, StatusName: "codex", BuyLink: storeURL + "17ca258e-251f-44c6-b89d-601c335d1b9e"},
	{ID: "arceus", Name: "Arceus X V5", RoleName: "Arceus Buyer", Color: 0x22c55e, Group: GroupAndroid,
		Aliases: []string{"arceus", "arceus x", "arceus x v5", "arceusxv5"}, StatusName: "arceus x v5", BuyLink: storeURL + "arceusxv5"},
}

func ProductByID(id string) (Product, bool) {
	for _, p := range Products {
		if p.ID == id {
			return p, true
		}
	}
	return Product{}, false
}

func ProductsInGroup(g Group) []Product {
	var out []Product
	for _, p := range Products {
		if p.Group == g {
			out = append(out, p)
		}
	}
	return out
}

// MatchProducts maps purchased line item names to catalog product IDs by
// case-insensitive substring match against each product's aliases. The result
// follows catalog order and has no duplicates.
func MatchProducts(itemNames []string) []string {
	matched := make(map[string]bool)
	for _, raw := range itemNames {
		name := strings.ToLower(raw)
		if name == "" {
			continue
		}
		for _, p := range Products {
			for _, alias := range p.Aliases {
				if strings.Contains(name, alias) {
					matched[p.ID] = true
					break
				}
			}
		}
	}

	ids := make([]string, 0, len(matched))
	for _, p := range Products {
		if matched[p.ID] {
			ids = append(ids, p.ID)
		}
	}
	return ids
}
