// Package catalog holds the store's static business tables: the spend tier
// ladder, flag roles, purchasable products, levels, discounts and rewards.
package catalog

import "math"

// MinVerifySpend is the lifetime spend required to verify.
const MinVerifySpend = 10.0

// PurchasesPerKey is the default number of purchases that earns one loyalty key.
const PurchasesPerKey = 5

const MaxLevel = 10

type TierRole struct {
	Threshold float64
	Name      string
	Color     int
}

// TierRoles is ordered by ascending threshold.
var TierRoles = []TierRole{
	{Threshold: 10, Name: "$10 Buyer", Color: 0xD7BDE2},
	{Threshold: 20, Name: "$20 Buyer", Color: 0xC39BD3},
	{Threshold: 30, Name: "$30 Buyer", Color: 0xAF7AC5},
	{Threshold: 40, Name: "$40 Buyer", Color: 0x9B59B6},
	{Threshold: 50, Name: "$50 Buyer", Color: 0x8E44AD},
	{Threshold: 60, Name: "$60 Buyer", Color: 0x7D3C98},
	{Threshold: 70, Name: "$70 VIP", Color: 0x6C3483},
	{Threshold: 80, Name: "$80 VIP", Color: 0x5B2C6F},
	{Threshold: 90, Name: "$90 Elite", Color: 0x4A235A},
	{Threshold: 100, Name: "$100 Legend", Color: 0xD4AC0D},
}

type FlagRole struct {
	Key      string
	Name     string
	Color    int
	MinSpend float64
}

const (
	FlagVerifiedBuyer   = "verified_buyer"
	FlagPrioritySupport = "priority_support"
)

// PrioritySpend is the spend at which tickets become VIP tickets.
const PrioritySpend = 70.0

var FlagRoles = []FlagRole{
	{Key: FlagVerifiedBuyer, Name: "Verified Buyer", Color: 0x9B59B6, MinSpend: MinVerifySpend},
	{Key: FlagPrioritySupport, Name: "Priority Support", Color: 0x6C3483, MinSpend: PrioritySpend},
}

// Level is min(floor(spent/10), 10), never negative.
func Level(spent float64) int {
	if spent <= 0 || math.IsNaN(spent) {
		return 0
	}
	// Clamp before converting: int(+Inf) and huge values are undefined.
	if spent >= float64(MaxLevel*10) {
		return MaxLevel
	}
	return int(math.Floor(spent / 10))
}

var levelNames = [...]string{
	"Not Verified", "Bronze", "Silver", "Gold", "Platinum", "Diamond",
	"Master", "VIP", "VIP+", "Elite", "Legend",
}

func LevelName(level int) string {
	if level < 0 || level >= len(levelNames) {
		return "Unknown"
	}
	return levelNames[level]
}

type Progress struct {
	CurrentLevel  int
	NextLevel     int // 0 once the top level is reached
	Percent       float64
	NeededForNext float64
}

func LevelProgress(spent float64) Progress {
	current := Level(spent)
	if current >= MaxLevel {
		return Progress{CurrentLevel: MaxLevel, Percent: 100}
	}

	floor := float64(current * 10)
	next := float64((current + 1) * 10)
	percent := (spent - floor) / (next - floor) * 100
	if percent > 100 {
		percent = 100
	}
	if percent < 0 {
		percent = 0
	}

	return Progress{
		CurrentLevel:  current,
		NextLevel:     current + 1,
		Percent:       percent,
		NeededForNext: next - spent,
	}
}

type Discount struct {
	Percent    int
	CodePrefix string
}

// DiscountForLevel returns the verification coupon for a level; the zero
// Discount means no coupon.
func DiscountForLevel(level int) Discount {
	switch {
	case level >= 1 && level <= 6:
		return Discount{Percent: 5, CodePrefix: "BUYER5"}
	case level >= 7 && level <= 9:
		return Discount{Percent: 7, CodePrefix: "VIP7"}
	case level == 10:
		return Discount{Percent: 10, CodePrefix: "LEGEND10"}
	default:
		return Discount{}
	}
}

// KeysEarned is the number of loyalty keys crossed when the purchase count goes
// from previous to current. Never negative.
func KeysEarned(current, previous, perKey int) int {
	if perKey <= 0 {
		perKey = PurchasesPerKey
	}
	if current < 0 {
		current = 0
	}
	if previous < 0 {
		previous = 0
	}
	earned := current/perKey - previous/perKey
	if earned < 0 {
		return 0
	}
	return earned
}
