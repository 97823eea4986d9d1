// Package segment defines the RenderedSegment data model
// shared by the builder, queue, scheduler, playout, and state packages.
package segment

// Kind identifies what a rendered segment contains.
type Kind string

const (
	KindSong       Kind = "song"
	KindCommentary Kind = "commentary"
	KindLiner      Kind = "liner"
)

// Source identifies whether a segment was produced automatically or in
// response to an operator request.
type Source string

const (
	SourceAuto   Source = "auto"
	SourceManual Source = "manual"
)

// Channel identifies the scheduler lane a segment's clips are placed on.
type Channel string

const (
	ChannelMusic  Channel = "music"
	ChannelVoice  Channel = "voice"
	ChannelJingle Channel = "jingle"
	ChannelAds    Channel = "ads"
)

// KindToChannel maps a segment kind to its default scheduler channel.
func KindToChannel(k Kind) Channel {
	switch k {
	case KindSong:
		return ChannelMusic
	case KindCommentary:
		return ChannelVoice
	case KindLiner:
		return ChannelJingle
	default:
		return ChannelMusic
	}
}

// Rendered is a produced audio file ready for playout.
type Rendered struct {
	ID              string
	Kind            Kind
	FilePath        string
	DurationSec     float64
	Note            string
	CommentaryText  string
	Source          Source
	Priority        int
	Pinned          bool
	Channel         Channel
	ScheduledStart  *float64 // seconds from stream start, if pre-scheduled
	TrackID         string   // for song segments, the source track
}
