package s3blob

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/golang-sql/civil"

	"github.com/vmarket/vmarket/internal/domain"
)

const jsonContentType = "application/json"

// ScheduleDocument is the exported form of one league's games for a date.
type ScheduleDocument struct {
	League     domain.League `json:"league"`
	Date       civil.Date    `json:"date"`
	ExportedAt time.Time     `json:"exported_at"`
	Games      []domain.Game `json:"games"`
}

// Exporter writes JSON snapshots of schedules and market mappings.
type Exporter struct {
	writer domain.BlobWriter
	now    func() time.Time
}

// NewExporter creates an Exporter on top of any BlobWriter.
func NewExporter(w domain.BlobWriter) *Exporter {
	return &Exporter{writer: w, now: time.Now}
}

// SchedulePath is schedules/<league>/<date>.json.
func SchedulePath(league domain.League, date civil.Date) string {
	return fmt.Sprintf("schedules/%s/%s.json", league, date)
}

// MappingPath is mappings/<room>/marketMapping<League>.json.
func MappingPath(room domain.Room, league domain.League) string {
	return fmt.Sprintf("mappings/%s/marketMapping%s.json", room, league)
}

// ExportSchedule uploads the games fetched for league on date.
func (e *Exporter) ExportSchedule(ctx context.Context, league domain.League, date civil.Date, games []domain.Game) error {
	if games == nil {
		games = []domain.Game{}
	}
	doc := ScheduleDocument{
		League:     league,
		Date:       date,
		ExportedAt: e.now().UTC(),
		Games:      games,
	}
	return e.putJSON(ctx, SchedulePath(league, date), doc)
}

// ExportMappings uploads every mapping of league in room, replacing the
// previous snapshot.
func (e *Exporter) ExportMappings(ctx context.Context, room domain.Room, league domain.League, mappings []domain.MarketMapping) error {
	if mappings == nil {
		mappings = []domain.MarketMapping{}
	}
	return e.putJSON(ctx, MappingPath(room, league), mappings)
}

func (e *Exporter) putJSON(ctx context.Context, path string, v any) error {
	data, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return fmt.Errorf("s3blob: marshal %s: %w", path, err)
	}
	if err := e.writer.Put(ctx, path, bytes.NewReader(data), jsonContentType); err != nil {
		return fmt.Errorf("s3blob: export %s: %w", path, err)
	}
	return nil
}
