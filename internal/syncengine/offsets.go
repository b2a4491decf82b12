package syncengine

// StaticOffsets holds known delays between stream roles in seconds,
// keyed by window role first and reference role second.
type StaticOffsets map[Role]map[Role]float64

// Lookup returns the offset of role window against role reference, or 0.
func (s StaticOffsets) Lookup(window, reference Role) float64 {
	if s == nil {
		return 0
	}
	return s[window][reference]
}

// OverrideSource is the live table of per-user offset adjustments.
// Subscribe registers fn to be called after any value changes and returns
// a function that removes the subscription.
type OverrideSource interface {
	Override(key string) (float64, bool)
	Subscribe(fn func()) (unsubscribe func())
}

// ResolveOffset returns the effective offset of w against the reference window.
// Missing table entries and overrides count as zero; overrides may be nil.
func ResolveOffset(static StaticOffsets, overrides OverrideSource, w, reference Window) float64 {
	var user float64
	if overrides != nil {
		if v, ok := overrides.Override(w.OverrideKey()); ok {
			user = v
		}
	}
	return static.Lookup(w.Role, reference.Role) + user
}

// OffsetRecord is a published delay between two channels of an event.
// ChannelToAdjust is delayed by DelaySeconds against the other entry of Channels.
type OffsetRecord struct {
	ChannelToAdjust string   `json:"channelToAdjust"`
	Channels        []string `json:"channels"`
	DelaySeconds    float64  `json:"delaySeconds"`
}

// lastMainWIFSeason is the last season in which the WIF channel carried the main feed.
const lastMainWIFSeason = 2021

// RoleForIdentifier maps a channel identifier to the role of the window showing it.
func RoleForIdentifier(identifier string, season int) Role {
	switch identifier {
	case "PRES":
		return RoleMain
	case "WIF":
		if season <= lastMainWIFSeason {
			return RoleMain
		}
	case "TRACKER":
		return RoleDriverTracker
	case "DATA":
		return RoleDataChannel
	case "OBC":
		return RoleDriver
	}
	return RoleOther
}

// BuildStaticOffsets converts offset records into a StaticOffsets table.
// Records without a base channel distinct from ChannelToAdjust are ignored;
// later records win over earlier ones for the same role pair.
func BuildStaticOffsets(records []OffsetRecord, season int) StaticOffsets {
	table := make(StaticOffsets)
	for _, rec := range records {
		base, ok := baseChannel(rec)
		if !ok {
			continue
		}
		adjust := RoleForIdentifier(rec.ChannelToAdjust, season)
		ref := RoleForIdentifier(base, season)
		row, ok := table[adjust]
		if !ok {
			row = make(map[Role]float64)
			table[adjust] = row
		}
		row[ref] = rec.DelaySeconds
	}
	return table
}

func baseChannel(rec OffsetRecord) (string, bool) {
	for _, ch := range rec.Channels {
		if ch != rec.ChannelToAdjust {
			return ch, true
		}
	}
	return "", false
}
