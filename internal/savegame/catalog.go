package savegame

import (
	"sort"
)

// Catalog is an immutable set of savegames keyed by ID.
// The zero value is an empty catalog.
type Catalog struct {
	saves     map[string]*Savegame
	truncated bool
}

// NewCatalog builds a catalog from saves. Later duplicates of an ID replace earlier ones.
func NewCatalog(saves []*Savegame, truncated bool) Catalog {
	byID := make(map[string]*Savegame, len(saves))
	for _, save := range saves {
		byID[save.ID] = save
	}

	return Catalog{saves: byID, truncated: truncated}
}

// CarryDetail returns fresh with the detail of unchanged files copied over
// from old. A file is unchanged when its size and modification time match.
func CarryDetail(old Catalog, fresh []*Savegame) []*Savegame {
	out := make([]*Savegame, len(fresh))

	for i, save := range fresh {
		out[i] = save

		previous, ok := old.saves[save.ID]
		if !ok || previous.Detail == nil || save.Detail != nil {
			continue
		}

		if previous.Size == save.Size && previous.ModTime.Equal(save.ModTime) {
			out[i] = save.WithDetail(previous.Detail)
		}
	}

	return out
}

// Unchanged reports whether fresh holds nothing worth publishing over old:
// the same IDs, the same truncation flag, and equal creation times wherever
// both sides know one.
func Unchanged(old, fresh Catalog) bool {
	if old.truncated != fresh.truncated || len(old.saves) != len(fresh.saves) {
		return false
	}

	for id, save := range fresh.saves {
		previous, ok := old.saves[id]
		if !ok {
			return false
		}

		if previous.Detail == nil || save.Detail == nil {
			continue
		}

		if !previous.Detail.CreationTime.Equal(save.Detail.CreationTime) {
			return false
		}
	}

	return true
}

// DetailReplaced reports whether a file old knows the header of has since been
// rewritten in place: fresh lists the same ID with a different size or
// modification time. Unchanged cannot see this when the fresh record is a
// listing stub.
func DetailReplaced(old, fresh Catalog) bool {
	for id, previous := range old.saves {
		if previous.Detail == nil {
			continue
		}

		save, ok := fresh.saves[id]
		if !ok {
			continue
		}

		if save.Size != previous.Size || !save.ModTime.Equal(previous.ModTime) {
			return true
		}
	}

	return false
}

// Get returns the save with the given ID.
func (c Catalog) Get(id string) (*Savegame, bool) {
	save, ok := c.saves[id]

	return save, ok
}

// IDs returns every ID in lexical order.
func (c Catalog) IDs() []string {
	ids := make([]string, 0, len(c.saves))
	for id := range c.saves {
		ids = append(ids, id)
	}

	sort.Strings(ids)

	return ids
}

// Len returns the number of saves.
func (c Catalog) Len() int {
	return len(c.saves)
}

// Newest returns the saves ordered from most to least recently modified.
// Ties are broken by ID.
func (c Catalog) Newest() []*Savegame {
	saves := make([]*Savegame, 0, len(c.saves))
	for _, save := range c.saves {
		saves = append(saves, save)
	}

	sort.Slice(saves, func(i, j int) bool {
		if !saves[i].ModTime.Equal(saves[j].ModTime) {
			return saves[i].ModTime.After(saves[j].ModTime)
		}

		return saves[i].ID < saves[j].ID
	})

	return saves
}

// Truncated reports whether the directory held more saves than the cap.
func (c Catalog) Truncated() bool {
	return c.truncated
}

// With returns a new catalog in which save replaces the record with the same ID.
func (c Catalog) With(save *Savegame) Catalog {
	byID := make(map[string]*Savegame, len(c.saves)+1)
	for id, existing := range c.saves {
		byID[id] = existing
	}

	byID[save.ID] = save

	return Catalog{saves: byID, truncated: c.truncated}
}

// Without returns a new catalog lacking the given IDs.
func (c Catalog) Without(ids ...string) Catalog {
	drop := make(map[string]bool, len(ids))
	for _, id := range ids {
		drop[id] = true
	}

	byID := make(map[string]*Savegame, len(c.saves))

	for id, existing := range c.saves {
		if !drop[id] {
			byID[id] = existing
		}
	}

	return Catalog{saves: byID, truncated: c.truncated}
}
