package directory

import "fmt"

func rec(short, name string) PlayerRecord {
	return PlayerRecord{
		ID:              "PM|FC26|" + Normalize(name),
		ShortName:       short,
		NameLower:       name,
		PlayerPositions: "CM",
		Overall:         80,
		Version:         "FC26",
	}
}

func testRecords() []PlayerRecord {
	return []PlayerRecord{
		rec("J. Bellingham", "j. bellingham"),
		rec("J. Smith", "j. smith"),
		rec("H. Bellerín", "h. bellerín"),
		rec("T. Alexander-Arnold", "t. alexander-arnold"),
		rec("K. Mbappé", "k. mbappé"),
		rec("Pedri", "pedri"),
		rec("Son Heung-min", "son heung-min"),
		{ID: "PM|FC26|vinicius junior", ShortName: "Vini Jr.", NameLower: "vinicius junior", SurnameLower: "junior", Version: "FC26"},
	}
}

// numbered returns n records named "<initial>. player0001" and so on.
func numbered(initial string, n int) []PlayerRecord {
	out := make([]PlayerRecord, n)
	for i := range out {
		name := fmt.Sprintf("%s. player%04d", initial, i)
		out[i] = rec(name, name)
	}
	return out
}
