package core

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"growcore/pkg/domain"
)

// ImportTagsInput carries raw serials for a bulk import.
type ImportTagsInput struct {
	Tags    []string `json:"tags" validate:"required,min=1"`
	TagType string   `json:"tag_type"`
	Actor   string   `json:"-"`
}

// ImportError describes one rejected serial.
type ImportError struct {
	Index int    `json:"index"`
	Tag   string `json:"tag"`
	Code  string `json:"code"`
	Error string `json:"error"`
}

// ImportResult reports per-entry outcomes of a bulk import.
type ImportResult struct {
	CreatedCount int           `json:"created_count"`
	ErrorCount   int           `json:"error_count"`
	Errors       []ImportError `json:"errors,omitempty"`
	Created      []MetrcTag    `json:"-"`
}

// TagFilter narrows tag listings. Zero fields match everything.
type TagFilter struct {
	Status  TagStatus `form:"status"`
	TagType string    `form:"tag_type"`
}

// RetireTagInput retires an unassigned tag.
type RetireTagInput struct {
	Tag   string `json:"-" validate:"required"`
	Actor string `json:"-"`
}

// ImportMetrcTags inserts every well-formed, unseen serial. Malformed and
// duplicate serials fail individually and the rest still import.
func (s *Service) ImportMetrcTags(ctx context.Context, in ImportTagsInput) (ImportResult, error) {
	if err := s.check(in); err != nil {
		return ImportResult{}, err
	}
	tagType := strings.TrimSpace(in.TagType)
	if tagType == "" {
		tagType = domain.TagTypePlant
	}
	var out ImportResult
	_, err := s.command(ctx, "import_metrc_tags", func(tx Transaction, res *CommandResult) error {
		out = ImportResult{}
		seen := make(map[string]struct{}, len(in.Tags))
		for i, raw := range in.Tags {
			serial, err := domain.NormalizeTag(raw)
			if err == nil {
				if _, dup := seen[serial]; dup {
					err = fmt.Errorf("%w: %s repeated in import", domain.ErrTagDuplicate, serial)
				}
			}
			if err == nil {
				seen[serial] = struct{}{}
				var created MetrcTag
				created, err = tx.CreateMetrcTag(MetrcTag{Tag: serial, TagType: tagType, Status: domain.TagStatusAvailable})
				if err == nil {
					out.Created = append(out.Created, created)
					err = appendEvent(tx, res, in.Actor, PlantEvent{
						TrackableType: EntityMetrcTag,
						TrackableID:   serial,
						EventType:     domain.EventCreated,
						Metadata:      EventMetadata{MetrcTag: serial},
					})
					if err != nil {
						return err
					}
				}
			}
			if err != nil {
				if !errors.Is(err, domain.ErrInvalidInput) && !errors.Is(err, domain.ErrTagDuplicate) {
					return err
				}
				out.ErrorCount++
				out.Errors = append(out.Errors, ImportError{Index: i, Tag: raw, Code: ErrorCode(err), Error: err.Error()})
				continue
			}
			out.CreatedCount++
		}
		return nil
	})
	if err != nil {
		return ImportResult{}, err
	}
	if obs, ok := s.metrics.(TagImportObserver); ok {
		obs.ObserveTagImport(ctx, out.CreatedCount, out.ErrorCount)
	}
	s.logger.Info("metrc tags imported", "created", out.CreatedCount, "errors", out.ErrorCount)
	return out, nil
}

// ListMetrcTags returns tags ordered by serial.
func (s *Service) ListMetrcTags(ctx context.Context, filter TagFilter) ([]MetrcTag, error) {
	out := []MetrcTag{}
	err := s.view(ctx, "list_metrc_tags", func(view TransactionView) error {
		for _, t := range view.ListMetrcTags() {
			if filter.Status != "" && t.Status != filter.Status {
				continue
			}
			if filter.TagType != "" && t.TagType != filter.TagType {
				continue
			}
			out = append(out, t)
		}
		return nil
	})
	return out, err
}

// AvailableTags returns the assignable tags of a type; an empty type matches all.
func (s *Service) AvailableTags(ctx context.Context, tagType string) ([]MetrcTag, error) {
	return s.ListMetrcTags(ctx, TagFilter{Status: domain.TagStatusAvailable, TagType: tagType})
}

// GetMetrcTag returns a tag by serial.
func (s *Service) GetMetrcTag(ctx context.Context, tag string) (MetrcTag, error) {
	serial, err := domain.NormalizeTag(tag)
	if err != nil {
		return MetrcTag{}, err
	}
	var out MetrcTag
	err = s.view(ctx, "get_metrc_tag", func(view TransactionView) error {
		t, ok := view.FindMetrcTag(serial)
		if !ok {
			return domain.NotFoundError{Entity: EntityMetrcTag, ID: serial}
		}
		out = t
		return nil
	})
	return out, err
}

// RetireMetrcTag permanently removes an available tag from the pool.
func (s *Service) RetireMetrcTag(ctx context.Context, in RetireTagInput) (CommandResult, error) {
	if err := s.check(in); err != nil {
		return CommandResult{}, err
	}
	serial, err := domain.NormalizeTag(in.Tag)
	if err != nil {
		return CommandResult{}, err
	}
	return s.command(ctx, "retire_metrc_tag", func(tx Transaction, res *CommandResult) error {
		if err := requireAvailableTag(tx.Snapshot(), serial); err != nil {
			return err
		}
		if _, err := tx.UpdateMetrcTag(serial, func(t *MetrcTag) error {
			t.Status = domain.TagStatusRetired
			return nil
		}); err != nil {
			return err
		}
		res.touchTag(serial)
		return appendEvent(tx, res, in.Actor, PlantEvent{
			TrackableType: EntityMetrcTag,
			TrackableID:   serial,
			EventType:     domain.EventStatusChanged,
			Metadata: EventMetadata{
				MetrcTag:   serial,
				FromStatus: string(domain.TagStatusAvailable),
				ToStatus:   string(domain.TagStatusRetired),
			},
		})
	})
}

func requireAvailableTag(view TransactionView, serial string) error {
	tag, ok := view.FindMetrcTag(serial)
	if !ok {
		return fmt.Errorf("%w: tag %s is not in the pool", domain.ErrTagUnavailable, serial)
	}
	if !tag.Assignable() {
		return fmt.Errorf("%w: tag %s is %s", domain.ErrTagUnavailable, serial, tag.Status)
	}
	return nil
}

// requirePlantTag checks that a tag can be bound to a plant: available and
// of the plant tag type.
func requirePlantTag(view TransactionView, serial string) error {
	if err := requireAvailableTag(view, serial); err != nil {
		return err
	}
	tag, _ := view.FindMetrcTag(serial)
	if tag.TagType != domain.TagTypePlant {
		return fmt.Errorf("%w: tag %s is a %s, not a %s", domain.ErrTagUnavailable, serial, tag.TagType, domain.TagTypePlant)
	}
	return nil
}

func assignTag(tx Transaction, serial, plantID string) error {
	_, err := tx.UpdateMetrcTag(serial, func(t *MetrcTag) error {
		if !t.Assignable() {
			return fmt.Errorf("%w: tag %s is %s", domain.ErrTagUnavailable, serial, t.Status)
		}
		t.Status = domain.TagStatusAssigned
		id := plantID
		t.PlantID = &id
		return nil
	})
	return err
}

func releaseTag(tx Transaction, serial string) error {
	_, err := tx.UpdateMetrcTag(serial, func(t *MetrcTag) error {
		if t.Status == domain.TagStatusAssigned {
			t.Status = domain.TagStatusAvailable
		}
		t.PlantID = nil
		return nil
	})
	return err
}
