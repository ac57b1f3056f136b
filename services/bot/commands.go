package bot

import "github.com/bwmarrin/discordgo"

const (
	cmdProfile         = "profile"
	cmdUnlink          = "admin_unlink"
	cmdLookup          = "admin_lookup"
	cmdSync            = "admin_sync"
	cmdGiveKeys        = "admin_give_keys"
	cmdCheckProducts   = "admin_check_products"
	cmdSetup           = "admin_setup"
	cmdUpdateStatus    = "admin_update_status"
	cmdCache           = "admin_cache"
	cacheActionStats   = "stats"
	cacheActionRefresh = "refresh"
	cacheActionClear   = "clear_orders"
)

// Component custom IDs owned by this package.
const (
	VerifyButtonID = "verify_start"
	VerifyModalID  = "verify_modal"
	ClaimButtonID  = "reward_claim"
	emailInputID   = "email"
)

var adminPermission int64 = discordgo.PermissionAdministrator

// Commands is the guild command set, registered in one bulk overwrite.
func Commands() []*discordgo.ApplicationCommand {
	userOpt := func(required bool, desc string) *discordgo.ApplicationCommandOption {
		return &discordgo.ApplicationCommandOption{
			Type:        discordgo.ApplicationCommandOptionUser,
			Name:        "user",
			Description: desc,
			Required:    required,
		}
	}
	emailOpt := &discordgo.ApplicationCommandOption{
		Type:        discordgo.ApplicationCommandOptionString,
		Name:        "email",
		Description: "Customer email",
	}
	minAmount := 1.0

	admin := func(name, desc string, opts ...*discordgo.ApplicationCommandOption) *discordgo.ApplicationCommand {
		return &discordgo.ApplicationCommand{
			Name:                     name,
			Description:              "[ADMIN] " + desc,
			DefaultMemberPermissions: &adminPermission,
			Options:                  opts,
		}
	}

	return []*discordgo.ApplicationCommand{
		{
			Name:        cmdProfile,
			Description: "Show your buyer profile, level and loyalty keys",
		},
		admin(cmdUnlink, "Unlink an email from a Discord account", userOpt(false, "Member to unlink"), emailOpt),
		admin(cmdLookup, "View a member's verification", userOpt(false, "Member to look up"), emailOpt),
		admin(cmdSync, "Sync every verified member now"),
		admin(cmdGiveKeys, "Give loyalty keys to a member",
			userOpt(true, "Member receiving the keys"),
			&discordgo.ApplicationCommandOption{
				Type:        discordgo.ApplicationCommandOptionInteger,
				Name:        "amount",
				Description: "Number of keys",
				Required:    true,
				MinValue:    &minAmount,
				MaxValue:    100,
			},
		),
		admin(cmdCheckProducts, "Re-check a member's products and fix product roles", userOpt(true, "Member to check")),
		admin(cmdSetup, "Create roles, channels and panels"),
		admin(cmdUpdateStatus, "Refresh the status dashboard now"),
		admin(cmdCache, "Inspect or refresh the customer cache",
			&discordgo.ApplicationCommandOption{
				Type:        discordgo.ApplicationCommandOptionString,
				Name:        "action",
				Description: "What to do",
				Required:    true,
				Choices: []*discordgo.ApplicationCommandOptionChoice{
					{Name: "Show stats", Value: cacheActionStats},
					{Name: "Reload customers", Value: cacheActionRefresh},
					{Name: "Clear order cache", Value: cacheActionClear},
				},
			},
		),
	}
}

type options map[string]*discordgo.ApplicationCommandInteractionDataOption

func optionMap(opts []*discordgo.ApplicationCommandInteractionDataOption) options {
	m := make(options, len(opts))
	for _, o := range opts {
		m[o.Name] = o
	}
	return m
}

func (o options) string(name string) string {
	if opt, ok := o[name]; ok {
		if s, ok := opt.Value.(string); ok {
			return s
		}
	}
	return ""
}

// user returns the snowflake of a user option; the raw value is the ID.
func (o options) user(name string) string {
	return o.string(name)
}

func (o options) int(name string) int {
	if opt, ok := o[name]; ok {
		if f, ok := opt.Value.(float64); ok {
			return int(f)
		}
	}
	return 0
}

// isAdmin reads the permissions Discord resolved for the invoking member.
func isAdmin(i *discordgo.Interaction) bool {
	return i.Member != nil && i.Member.Permissions&discordgo.PermissionAdministrator != 0
}

// invoker returns the acting user in guild and DM interactions alike.
func invoker(i *discordgo.Interaction) *discordgo.User {
	if i.Member != nil && i.Member.User != nil {
		return i.Member.User
	}
	return i.User
}

func displayName(u *discordgo.User) string {
	if u == nil {
		return ""
	}
	if u.GlobalName != "" {
		return u.GlobalName
	}
	return u.Username
}
