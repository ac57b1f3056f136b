package catalog

type RewardKind string

const (
	RewardDiscountKey RewardKind = "discount_key"
	RewardRobloxAlt   RewardKind = "roblox_alt"
	RewardFreeProduct RewardKind = "free_product"
)

type Reward struct {
	Kind RewardKind
	// Value is the number of days for discount keys and a unit count otherwise.
	Value       int
	Weight      int
	Description string
}

// Rewards is the loyalty lottery table. Weights add up to 100.
var Rewards = []Reward{
	{Kind: RewardDiscountKey, Value: 1, Weight: 40, Description: "1-Day Discount Key (10% off)"},
	{Kind: RewardRobloxAlt, Value: 5, Weight: 50, Description: "Roblox Alt Account x5"},
	{Kind: RewardDiscountKey, Value: 3, Weight: 5, Description: "3-Day Discount Key (15% off)"},
	{Kind: RewardDiscountKey, Value: 7, Weight: 2, Description: "7-Day Discount Key (20% off)"},
	{Kind: RewardDiscountKey, Value: 30, Weight: 1, Description: "30-Day Discount Key (25% off)"},
	{Kind: RewardFreeProduct, Value: 1, Weight: 2, Description: "Mystery Box (Random Product)"},
}
