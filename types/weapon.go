package types

// Weapon is read-only reference data describing an in-game weapon.
type Weapon struct {
	// ID is the unique identifier of the weapon.
	ID int64 `json:"id" db:"id"`

	// Name is the display name of the weapon.
	Name string `json:"name" db:"name"`

	// Category is the weapon class label (e.g., "Assault Rifle").
	Category string `json:"category" db:"category"`

	// ImageURL is the canonical weapon image. It may be empty.
	ImageURL string `json:"image_url" db:"image_url"`
}
