package ytdlp

import (
	"math"
	"sort"
	"strconv"
)

// compressionFactor models average compression efficiency against the
// nominal bitrate when estimating sizes.
const compressionFactor = 0.7

const (
	minSynthesizedHeight = 480
	premiumHeight        = 720
	defaultAudioCodec    = "mp3"
	defaultAudioBitrate  = 192
)

// QualityOption is one downloadable choice presented to callers. Key is a
// selector token accepted by Download.
type QualityOption struct {
	Key             string  `json:"key"`
	Label           string  `json:"label"`
	Height          int     `json:"height,omitempty"`
	FormatID        string  `json:"format_id,omitempty"`
	Ext             string  `json:"ext"`
	BitrateKbps     float64 `json:"bitrate_kbps"`
	SizeBytes       int64   `json:"size_bytes"`
	SizeEstimated   bool    `json:"size_estimated"`
	AudioOnly       bool    `json:"audio_only"`
	RequiresPremium bool    `json:"requires_premium"`
}

// assumedBitrates maps the standard vertical resolutions to kbps.
var assumedBitrates = map[int]float64{
	2160: 15000,
	1440: 8000,
	1080: 4000,
	720:  2000,
	480:  1000,
}

// fallbackBitrate is assumed for any resolution outside the table.
const fallbackBitrate = 700

// AssumedBitrate returns the bitrate in kbps assumed for a vertical resolution
// when the tool reports none. Only the standard heights have an entry.
func AssumedBitrate(height int) float64 {
	if kbps, ok := assumedBitrates[height]; ok {
		return kbps
	}
	return fallbackBitrate
}

// EstimateSize estimates bytes for a stream of kbps over seconds.
func EstimateSize(kbps, seconds float64) int64 {
	if kbps <= 0 || seconds <= 0 {
		return 0
	}
	return int64(math.Round(kbps * 1000 * seconds * compressionFactor / 8))
}

// SynthesizeQualities builds the option list from the raw formats: the best
// muxed format per height, synthesized options for heights only available as
// video-only streams, then a default audio option and the best reported
// audio-only format.
func SynthesizeQualities(formats []Format, duration float64) []QualityOption {
	var muxed, videoOnly, audioOnly []Format
	for _, f := range formats {
		switch {
		case f.hasVideo() && f.hasAudio():
			muxed = append(muxed, f)
		case f.hasVideo():
			videoOnly = append(videoOnly, f)
		case f.hasAudio():
			audioOnly = append(audioOnly, f)
		}
	}

	bestByHeight := make(map[int]Format)
	for _, f := range muxed {
		if f.Height <= 0 {
			continue
		}
		current, ok := bestByHeight[f.Height]
		if !ok || f.bitrate() > current.bitrate() {
			bestByHeight[f.Height] = f
		}
	}

	options := make([]QualityOption, 0, len(bestByHeight)+len(videoOnly)+2)
	for height, f := range bestByHeight {
		opt := videoOption(height, duration)
		opt.FormatID = f.FormatID
		if f.Ext != "" {
			opt.Ext = f.Ext
		}
		if kbps := f.bitrate(); kbps > 0 {
			opt.BitrateKbps = kbps
		}
		if size := f.reportedSize(); size > 0 {
			opt.SizeBytes = size
			opt.SizeEstimated = false
		} else {
			opt.SizeBytes = EstimateSize(opt.BitrateKbps, duration)
		}
		options = append(options, opt)
	}

	synthesized := make(map[int]struct{})
	for _, f := range videoOnly {
		if f.Height < minSynthesizedHeight {
			continue
		}
		if _, covered := bestByHeight[f.Height]; covered {
			continue
		}
		if _, done := synthesized[f.Height]; done {
			continue
		}
		synthesized[f.Height] = struct{}{}
		options = append(options, videoOption(f.Height, duration))
	}

	sort.SliceStable(options, func(i, j int) bool {
		return options[i].Height > options[j].Height
	})

	options = append(options, QualityOption{
		Key:           "audio_" + defaultAudioCodec + "_" + strconv.Itoa(defaultAudioBitrate),
		Label:         "MP3 " + strconv.Itoa(defaultAudioBitrate) + "k",
		Ext:           defaultAudioCodec,
		BitrateKbps:   defaultAudioBitrate,
		SizeBytes:     EstimateSize(defaultAudioBitrate, duration),
		SizeEstimated: true,
		AudioOnly:     true,
	})

	if best, ok := bestAudio(audioOnly); ok {
		kbps := best.ABR
		if kbps <= 0 {
			kbps = best.bitrate()
		}
		opt := QualityOption{
			Key:         best.FormatID,
			Label:       "Original audio (" + best.Ext + ")",
			FormatID:    best.FormatID,
			Ext:         best.Ext,
			BitrateKbps: kbps,
			AudioOnly:   true,
		}
		if size := best.reportedSize(); size > 0 {
			opt.SizeBytes = size
		} else {
			opt.SizeBytes = EstimateSize(kbps, duration)
			opt.SizeEstimated = true
		}
		options = append(options, opt)
	}

	return options
}

func videoOption(height int, duration float64) QualityOption {
	kbps := AssumedBitrate(height)
	return QualityOption{
		Key:             strconv.Itoa(height) + "p",
		Label:           strconv.Itoa(height) + "p",
		Height:          height,
		Ext:             mergeContainer,
		BitrateKbps:     kbps,
		SizeBytes:       EstimateSize(kbps, duration),
		SizeEstimated:   true,
		RequiresPremium: height > premiumHeight,
	}
}

func bestAudio(formats []Format) (Format, bool) {
	var best Format
	found := false
	for _, f := range formats {
		kbps := f.ABR
		if kbps <= 0 {
			kbps = f.bitrate()
		}
		bestKbps := best.ABR
		if bestKbps <= 0 {
			bestKbps = best.bitrate()
		}
		if !found || kbps > bestKbps {
			best = f
			found = true
		}
	}
	return best, found
}
