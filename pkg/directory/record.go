// Package directory is the player-directory lookup cache: a per-version
// search index over the reference player dataset, the tiered loader that
// fills it and the typeahead query engine that reads it.
package directory

// PlayerRecord is one row of the reference player directory as served by
// the directory service, a bundle file or a snapshot.
type PlayerRecord struct {
	ID              string `json:"id" msgpack:"id"`
	ShortName       string `json:"shortName" msgpack:"shortName"`
	NameLower       string `json:"nameLower" msgpack:"nameLower"`
	SurnameLower    string `json:"surnameLower,omitempty" msgpack:"surnameLower,omitempty"`
	PlayerPositions string `json:"playerPositions" msgpack:"playerPositions"`
	Overall         int    `json:"overall,omitempty" msgpack:"overall,omitempty"`
	Potential       int    `json:"potential,omitempty" msgpack:"potential,omitempty"`
	Age             int    `json:"age,omitempty" msgpack:"age,omitempty"`
	ClubPosition    string `json:"clubPosition,omitempty" msgpack:"clubPosition,omitempty"`
	NationalityName string `json:"nationalityName,omitempty" msgpack:"nationalityName,omitempty"`
	PreferredFoot   string `json:"preferredFoot,omitempty" msgpack:"preferredFoot,omitempty"`
	Version         string `json:"version" msgpack:"version"`
}

// Meta is the display subset of a PlayerRecord kept alongside each indexed
// name. Surname and Display are normalized.
type Meta struct {
	ID          string `json:"id"`
	ShortName   string `json:"shortName"`
	Surname     string `json:"-"`
	Display     string `json:"-"`
	Positions   string `json:"playerPositions,omitempty"`
	Overall     int    `json:"overall,omitempty"`
	Potential   int    `json:"potential,omitempty"`
	Age         int    `json:"age,omitempty"`
	Nationality string `json:"nationalityName,omitempty"`
	Foot        string `json:"preferredFoot,omitempty"`
}

// metaFor builds the display metadata for a record whose normalized name is
// name.
func metaFor(r PlayerRecord, name string) Meta {
	surname := Normalize(r.SurnameLower)
	if surname == "" {
		surname = surnameOf(name)
	}
	display := Normalize(r.ShortName)
	if display == "" {
		display = name
	}
	return Meta{
		ID:          r.ID,
		ShortName:   r.ShortName,
		Surname:     surname,
		Display:     display,
		Positions:   r.PlayerPositions,
		Overall:     r.Overall,
		Potential:   r.Potential,
		Age:         r.Age,
		Nationality: r.NationalityName,
		Foot:        r.PreferredFoot,
	}
}
