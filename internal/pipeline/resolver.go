// Package pipeline resolves transcripts for a batch of videos: per-video
// resolution (cache, native captions, speech-to-text) driven by a two-phase
// scheduler that checkpoints progress after every item.
package pipeline

import (
	"context"
	"errors"

	"github.com/rs/zerolog/log"

	"github.com/fpang/transcript-insight/internal/audio"
	"github.com/fpang/transcript-insight/internal/metrics"
	"github.com/fpang/transcript-insight/internal/stt"
	"github.com/fpang/transcript-insight/internal/transcript"
	"github.com/fpang/transcript-insight/internal/youtube"
)

// TranscriptCache is the read-through / write-through transcript store.
type TranscriptCache interface {
	LoadTranscript(ctx context.Context, videoID string) (*transcript.Transcript, error)
	SaveTranscript(ctx context.Context, t *transcript.Transcript) error
}

// CaptionSource fetches native captions in a preferred language.
type CaptionSource interface {
	Fetch(ctx context.Context, videoID string, langs []string) (*transcript.Transcript, error)
}

// AudioSource downloads a video's audio and returns the local path.
type AudioSource interface {
	Acquire(ctx context.Context, v transcript.Video) (string, error)
}

// Transcriber turns an audio file into a persisted transcript.
type Transcriber interface {
	Transcribe(ctx context.Context, videoID, audioPath, language string) (*transcript.Transcript, error)
}

// Resolver decides, per video, between the cached transcript, native
// captions and speech-to-text. It never returns an error: every failure
// becomes a failed Outcome.
type Resolver struct {
	cache       TranscriptCache
	captions    CaptionSource
	audio       AudioSource
	stt         Transcriber
	sttLanguage string
}

// NewResolver wires a resolver. audioSrc and transcriber may be nil when
// speech-to-text is never enabled.
func NewResolver(cache TranscriptCache, captions CaptionSource, audioSrc AudioSource, transcriber Transcriber, sttLanguage string) *Resolver {
	return &Resolver{
		cache:       cache,
		captions:    captions,
		audio:       audioSrc,
		stt:         transcriber,
		sttLanguage: sttLanguage,
	}
}

// Resolve runs the full state machine for one video.
func (r *Resolver) Resolve(ctx context.Context, v transcript.Video, langs []string, allowSTT bool) transcript.Outcome {
	out := r.ResolveNative(ctx, v, langs)
	if out.Success || !out.NeedsSpeechToText || !allowSTT {
		return out
	}
	path, failed, ok := r.AcquireAudio(ctx, v)
	if !ok {
		return failed
	}
	return r.TranscribeAudio(ctx, v, path)
}

// ResolveNative consults the cache, then native captions. A video without
// usable captions yields a NeedsSpeechToText outcome with no side effects.
func (r *Resolver) ResolveNative(ctx context.Context, v transcript.Video, langs []string) transcript.Outcome {
	if t := r.cached(ctx, v.ID); t != nil {
		metrics.TranscriptResolved("cache")
		return transcript.Succeeded(v, t, true)
	}

	t, err := r.captions.Fetch(ctx, v.ID, langs)
	if err != nil {
		if youtube.IsSoftAbsence(err) {
			log.Info().Str("video_id", v.ID).Str("reason", err.Error()).Msg("No native transcript")
			return transcript.NeedsSpeech(v)
		}
		log.Warn().Err(err).Str("video_id", v.ID).Msg("Caption fetch failed")
		return transcript.Failed(v, transcript.KindCaptions, err.Error())
	}

	if err := r.cache.SaveTranscript(ctx, t); err != nil {
		log.Error().Err(err).Str("video_id", v.ID).Msg("Failed to persist transcript")
		return transcript.Failed(v, transcript.KindCache, err.Error())
	}
	metrics.TranscriptResolved(string(t.Source))
	return transcript.Succeeded(v, t, false)
}

// AcquireAudio downloads audio for a video. When ok is false, failed holds
// the classified outcome.
func (r *Resolver) AcquireAudio(ctx context.Context, v transcript.Video) (path string, failed transcript.Outcome, ok bool) {
	if r.audio == nil {
		return "", transcript.Failed(v, transcript.KindAcquisition, "audio acquisition is not configured"), false
	}
	path, err := r.audio.Acquire(ctx, v)
	if err != nil {
		kind := transcript.KindAcquisition
		if audio.IsTimeout(err) {
			kind = transcript.KindTimeout
		}
		return "", transcript.Failed(v, kind, err.Error()), false
	}
	return path, transcript.Outcome{}, true
}

// TranscribeAudio runs speech-to-text on acquired audio. The adapter
// persists the transcript on success.
func (r *Resolver) TranscribeAudio(ctx context.Context, v transcript.Video, path string) transcript.Outcome {
	if r.stt == nil {
		return transcript.Failed(v, transcript.KindTranscription, "speech-to-text is not configured")
	}
	t, err := r.stt.Transcribe(ctx, v.ID, path, r.sttLanguage)
	if err != nil {
		kind := transcript.KindTranscription
		if errors.Is(err, stt.ErrFileTooLarge) {
			kind = transcript.KindOversized
		}
		return transcript.Failed(v, kind, err.Error())
	}
	metrics.TranscriptResolved(string(t.Source))
	return transcript.Succeeded(v, t, false)
}

// cached returns the stored transcript or nil. Read errors count as misses.
func (r *Resolver) cached(ctx context.Context, id string) *transcript.Transcript {
	t, err := r.cache.LoadTranscript(ctx, id)
	if err != nil {
		log.Warn().Err(err).Str("video_id", id).Msg("Unreadable cached transcript, refetching")
		return nil
	}
	return t
}
