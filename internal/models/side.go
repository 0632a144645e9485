package models

// ConnectedItem is one label around a curiosity map's centre.
type ConnectedItem struct {
	Label   string  `json:"label"`
	LinksTo *string `json:"linksTo"`
}

// CuriosityData is the side record of a curiosity node, stored as curiosities/<id>.json.
type CuriosityData struct {
	ID               string          `json:"id"`
	Title            string          `json:"title"`
	Central          string          `json:"central"`
	Connected        []ConnectedItem `json:"connected"`
	Threads          []ThreadTag     `json:"threads"`
	VisibleOnLanding *bool           `json:"visible_on_landing,omitempty"`
}

// CuriosityPayload is the editor-supplied part of a CuriosityData.
type CuriosityPayload struct {
	Central   string          `json:"central"`
	Connected []ConnectedItem `json:"connected"`
}

// DurationalSubtype is the closed set of durational content kinds.
type DurationalSubtype string

const (
	SubtypeDJMix        DurationalSubtype = "dj-mix"
	SubtypeTalk         DurationalSubtype = "talk"
	SubtypePodcast      DurationalSubtype = "podcast"
	SubtypePresentation DurationalSubtype = "presentation"
)

// DurationalSubtypes lists every valid durational subtype.
var DurationalSubtypes = []DurationalSubtype{SubtypeDJMix, SubtypeTalk, SubtypePodcast, SubtypePresentation}

// MediaSource is the closed set of embeddable hosts.
type MediaSource string

const (
	SourceSoundCloud MediaSource = "soundcloud"
	SourceMixcloud   MediaSource = "mixcloud"
	SourceYouTube    MediaSource = "youtube"
	SourceVimeo      MediaSource = "vimeo"
	SourceSpotify    MediaSource = "spotify"
)

// MediaSources lists every valid media source.
var MediaSources = []MediaSource{SourceSoundCloud, SourceMixcloud, SourceYouTube, SourceVimeo, SourceSpotify}

// DurationalMedia points at the hosted recording.
type DurationalMedia struct {
	Source   MediaSource `json:"source"`
	URL      string      `json:"url"`
	EmbedURL string      `json:"embedUrl,omitempty"`
	Duration string      `json:"duration,omitempty"`
}

// DurationalData is the side record of a durational node, stored as durational/<id>.json.
type DurationalData struct {
	ID          string            `json:"id"`
	Title       string            `json:"title"`
	Type        NodeType          `json:"type"`
	Subtype     DurationalSubtype `json:"subtype,omitempty"`
	Description string            `json:"description,omitempty"`
	Media       *DurationalMedia  `json:"media"`
	Commentary  string            `json:"commentary,omitempty"`
	Created     string            `json:"created,omitempty"`
	Threads     []ThreadTag       `json:"threads"`
}

// DurationalPayload is the editor-supplied part of a DurationalData.
type DurationalPayload struct {
	Subtype     DurationalSubtype `json:"subtype,omitempty"`
	Description string            `json:"description,omitempty"`
	Media       *DurationalMedia  `json:"media"`
	Commentary  string            `json:"commentary,omitempty"`
}
