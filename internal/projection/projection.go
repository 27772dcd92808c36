// Package projection maps stored build rows to the viewer-annotated shape
// returned by every listing and detail endpoint.
package projection

import (
	"github.com/imzleep/abibuilder-sub000/internal/permission"
	"github.com/imzleep/abibuilder-sub000/types"
)

// ViewerState is the viewer's own ledger state for one page of builds,
// fetched with a single batched lookup.
type ViewerState struct {
	Votes     map[int64]types.VoteDirection
	Bookmarks map[int64]bool
}

// Project converts a stored row into its public shape for viewer.
func Project(row types.BuildRow, viewer permission.Viewer, state ViewerState) types.ProjectedBuild {
	b := row.Build

	title := b.Title
	if title == "" {
		title = b.WeaponName
	}

	weaponImage := b.WeaponImage
	if weaponImage == "" {
		weaponImage = b.ImageURL
	}

	out := types.ProjectedBuild{
		ID:          b.ID,
		UserID:      b.UserID,
		WeaponID:    b.WeaponID,
		WeaponName:  b.WeaponName,
		WeaponImage: weaponImage,
		ImageURL:    b.ImageURL,
		Title:       title,
		Description: b.Description,
		BuildCode:   b.BuildCode,
		Price:       b.Price,
		Stats:       b.Stats,
		Tags:        DisplayTags(b.Tags, row.Author.IsStreamer),
		Status:      b.Status,
		Upvotes:     b.Upvotes,
		Downvotes:   b.Downvotes,
		CreatedAt:   b.CreatedAt,
		Author:      row.Author,
		CanDelete:   viewer.CanDelete(b.UserID),
		CanEdit:     viewer.CanEdit(),
	}

	if viewer.Authenticated() {
		if dir, ok := state.Votes[b.ID]; ok {
			out.UserVote = &dir
		}
		out.IsBookmarked = state.Bookmarks[b.ID]
	}
	return out
}

// ProjectAll projects a page of rows. The result is never nil.
func ProjectAll(rows []types.BuildRow, viewer permission.Viewer, state ViewerState) []types.ProjectedBuild {
	out := make([]types.ProjectedBuild, 0, len(rows))
	for _, row := range rows {
		out = append(out, Project(row, viewer, state))
	}
	return out
}

// DisplayTags returns the deduplicated stored tags, plus the streamer tag
// when the author is a streamer and it is not stored already.
func DisplayTags(stored []string, authorIsStreamer bool) []string {
	tags := DedupeTags(stored)
	if !authorIsStreamer {
		return tags
	}
	for _, tag := range tags {
		if tag == types.StreamerBuildTag {
			return tags
		}
	}
	return append(tags, types.StreamerBuildTag)
}

// DedupeTags drops empty and repeated tags, keeping first occurrences.
func DedupeTags(tags []string) []string {
	out := make([]string, 0, len(tags))
	seen := make(map[string]struct{}, len(tags))
	for _, tag := range tags {
		if tag == "" {
			continue
		}
		if _, ok := seen[tag]; ok {
			continue
		}
		seen[tag] = struct{}{}
		out = append(out, tag)
	}
	return out
}

// BuildIDs returns the ids of rows in order.
func BuildIDs(rows []types.BuildRow) []int64 {
	ids := make([]int64, 0, len(rows))
	for _, row := range rows {
		ids = append(ids, row.ID)
	}
	return ids
}
