// package resolver turns a catalog media id into a single playable audio source
package resolver

import (
	"context"
	"errors"
	"fmt"

	"github.com/charmbracelet/log"
	"github.com/nnaudify/audify/internal/models"
	"github.com/nnaudify/audify/internal/services"
	"github.com/nnaudify/audify/internal/shared"
)

// ProxyHandle returns the stable proxy path for a media id.
//
// The handle is a function of the id only, never of a candidate's ephemeral
// URL, so it stays valid after the URL expires and resolution is repeated.
func ProxyHandle(mediaID string) string {
	return "/api/proxy/" + mediaID
}

// preferredContainers are checked first when partitioning candidates;
// browsers play these without transcoding.
var preferredContainers = map[string]bool{
	"m4a": true,
	"mp3": true,
}

// Resolver selects the best audio source for a media id.
type Resolver struct {
	provider services.MetadataProvider
	logger   *log.Logger
}

// New creates a Resolver backed by the given metadata provider.
func New(provider services.MetadataProvider, logger *log.Logger) *Resolver {
	if logger == nil {
		logger = shared.NewLogger(nil)
	}
	return &Resolver{provider: provider, logger: logger}
}

// Resolve queries the provider for the media id's format list and returns
// the highest-bitrate audio-bearing candidate, preferring m4a/mp3 containers.
//
// The result is valid for a single proxy request only; chosen URLs expire and
// must not be cached across requests. Fails with [shared.ErrNotFound] when no
// candidate carries audio, and [shared.ErrUpstream] on provider failure.
func (r *Resolver) Resolve(ctx context.Context, mediaID string) (*models.ResolvedTrack, error) {
	meta, candidates, err := r.provider.ResolveFormats(ctx, mediaID)
	if err != nil {
		if errors.Is(err, shared.ErrUpstream) {
			return nil, err
		}
		return nil, fmt.Errorf("%w: %v", shared.ErrUpstream, err)
	}

	chosen, err := chooseSource(candidates)
	if err != nil {
		return nil, fmt.Errorf("%w: media %s", err, mediaID)
	}

	r.logger.Debug("resolved source",
		"media_id", mediaID,
		"container", chosen.Container,
		"bitrate_kbps", chosen.BitrateKbps,
	)

	return &models.ResolvedTrack{
		MediaID:      mediaID,
		Title:        meta.Title,
		Uploader:     meta.Uploader,
		Duration:     meta.Duration,
		ThumbnailURL: meta.ThumbnailURL,
		Chosen:       chosen,
		ProxyHandle:  ProxyHandle(mediaID),
	}, nil
}

// chooseSource picks one candidate from a format list.
//
// Audio-bearing candidates are partitioned into a preferred tier (m4a/mp3)
// and a fallback tier (any audio). Within the winning tier the highest
// reported bitrate wins; a missing bitrate ranks as 0, and ties keep the
// provider's original ordering (first wins), so identical provider output
// always yields the same choice.
func chooseSource(candidates []models.CandidateSource) (models.CandidateSource, error) {
	var preferred, fallback []models.CandidateSource
	for _, c := range candidates {
		if !c.HasAudio {
			continue
		}
		fallback = append(fallback, c)
		if preferredContainers[c.Container] {
			preferred = append(preferred, c)
		}
	}

	tier := preferred
	if len(tier) == 0 {
		tier = fallback
	}
	if len(tier) == 0 {
		return models.CandidateSource{}, shared.ErrNotFound
	}

	best := tier[0]
	for _, c := range tier[1:] {
		if c.BitrateKbps > best.BitrateKbps {
			best = c
		}
	}
	return best, nil
}
