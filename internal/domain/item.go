package domain

import "strconv"

// Platform identifies the video platform an account lives on.
type Platform string

const (
	PlatformBilibili Platform = "bilibili"
	PlatformYouTube  Platform = "youtube"
)

// Glyph returns the marker used for this platform in rendered digests.
func (p Platform) Glyph() string {
	if p == PlatformYouTube {
		return "📺"
	}
	return "📱"
}

// Account is a monitored creator on one platform. Accounts come from
// static configuration and never change during a run.
type Account struct {
	Platform  Platform
	UID       int64  // Bilibili creator UID
	ChannelID string // YouTube channel ID
	Name      string
	NoFilter  bool // uploads bypass keyword filtering
}

// Ref returns the platform-native identifier as a string.
func (a Account) Ref() string {
	if a.Platform == PlatformYouTube {
		return a.ChannelID
	}
	return strconv.FormatInt(a.UID, 10)
}

// Item is a single upload discovered from an account.
type Item struct {
	ID          string // platform-native identifier (bvid or video ID)
	Title       string
	Description string
	Published   int64 // epoch seconds, UTC
	Account     Account
	Platform    Platform
}

// LedgerKey returns the identifier used for dedupe lookups. YouTube IDs
// are prefixed so they cannot collide with Bilibili's bvid space;
// Bilibili keeps the default namespace for compatibility with ledgers
// written before YouTube support existed.
func (i Item) LedgerKey() string {
	if i.Platform == PlatformYouTube {
		return "yt:" + i.ID
	}
	return i.ID
}

// URL returns the canonical watch link for the item.
func (i Item) URL() string {
	if i.Platform == PlatformYouTube {
		return "https://www.youtube.com/watch?v=" + i.ID
	}
	return "https://www.bilibili.com/video/" + i.ID
}
