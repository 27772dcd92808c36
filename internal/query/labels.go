package query

// categoryLabels maps category slugs to the labels stored on weapons.
var categoryLabels = map[string]string{
	"assault-rifle":  "Assault Rifle",
	"battle-rifle":   "Battle Rifle",
	"carbine":        "Carbine",
	"smg":            "SMG",
	"lmg":            "LMG",
	"marksman-rifle": "Marksman Rifle",
	"sniper-rifle":   "Sniper Rifle",
	"shotgun":        "Shotgun",
	"pistol":         "Pistol",
}

// tagLabels maps tag slugs to the literal tag strings stored on builds.
var tagLabels = map[string]string{
	"meta":        "META",
	"zero-recoil": "Zero Recoil",
	"budget":      "Budget",
	"high-ergo":   "High Ergo",
	"long-range":  "Long Range",
	"cqb":         "CQB",
	"beginner":    "Beginner Friendly",
	"pvp":         "PvP",
	"pve":         "PvE",
}

// CategoryLabel returns the stored label of a category slug.
func CategoryLabel(slug string) (string, bool) {
	label, ok := categoryLabels[slug]
	return label, ok
}

// TagLabel returns the stored tag string of a tag slug. Unknown slugs are
// returned unchanged.
func TagLabel(slug string) string {
	if label, ok := tagLabels[slug]; ok {
		return label
	}
	return slug
}

// TagLabels returns the known slug to label table.
func TagLabels() map[string]string {
	out := make(map[string]string, len(tagLabels))
	for k, v := range tagLabels {
		out[k] = v
	}
	return out
}
