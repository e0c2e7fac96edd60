package service

import (
	"slices"

	"github.com/samber/lo"
)

// AllowList is the configured set of administrator identities.
type AllowList struct {
	ids map[int64]struct{}
}

func NewAllowList(ids []int64) AllowList {
	return AllowList{
		ids: lo.SliceToMap(ids, func(id int64) (int64, struct{}) {
			return id, struct{}{}
		}),
	}
}

func (a AllowList) Contains(externalID int64) bool {
	_, ok := a.ids[externalID]
	return ok
}

// IDs returns the members in ascending order.
func (a AllowList) IDs() []int64 {
	ids := lo.Keys(a.ids)
	slices.Sort(ids)
	return ids
}

// ResolveAdmin decides administrator status. A stored flag wins when present;
// otherwise membership in the allow-list decides. Login passes a nil flag so
// the allow-list overrides whatever was stored.
func ResolveAdmin(externalID int64, allowList AllowList, storedFlag *bool) bool {
	if storedFlag != nil {
		return *storedFlag
	}
	return allowList.Contains(externalID)
}
