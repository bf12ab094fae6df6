package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/segmentio/kafka-go"

	"github.com/DeafMist/hotel-radar/internal/cache"
	"github.com/DeafMist/hotel-radar/internal/config"
	"github.com/DeafMist/hotel-radar/internal/events"
	"github.com/DeafMist/hotel-radar/internal/models"
	"github.com/DeafMist/hotel-radar/internal/processing"
)

type hotelIndexer interface {
	IndexHotel(ctx context.Context, doc models.HotelDocument) error
}

// indexer turns search events into hotel snapshots.
type indexer struct {
	log   *slog.Logger
	es    hotelIndexer
	seen  cache.Store
	cfg   *config.Worker
	clock func() time.Time
}

func (i *indexer) processMessage(ctx context.Context, msg kafka.Message) error {
	event, err := events.DecodeSearchEvent(msg)
	if err != nil {
		return err
	}

	ts := event.Timestamp
	if ts.IsZero() {
		ts = msg.Time
	}
	if ts.IsZero() {
		ts = i.clock()
	}

	indexed, skipped := 0, 0
	for _, hotel := range event.Result.Hotels {
		if strings.TrimSpace(hotel.ID) == "" {
			skipped++
			continue
		}
		doc := buildDocument(event, hotel, ts.UTC(), i.cfg.KeywordLimit, i.cfg.KeywordMinLength)

		if _, err := i.seen.Get(ctx, doc.ID); err == nil {
			skipped++
			continue
		} else if !errors.Is(err, cache.ErrMiss) {
			return fmt.Errorf("dedupe lookup: %w", err)
		}

		if err := i.es.IndexHotel(ctx, doc); err != nil {
			return fmt.Errorf("index hotel %s: %w", hotel.ID, err)
		}
		if err := i.seen.Set(ctx, doc.ID, []byte{1}, i.cfg.DedupeTTL); err != nil {
			i.log.Warn("mark indexed", slog.String("id", doc.ID), slog.Any("err", err))
		}
		indexed++
	}

	i.log.Info("indexed search",
		slog.String("search_id", event.SearchID),
		slog.Int("indexed", indexed),
		slog.Int("skipped", skipped),
	)
	return nil
}

func buildDocument(event models.SearchEvent, h models.MatchedHotel, ts time.Time, keywordLimit, keywordMinLen int) models.HotelDocument {
	doc := models.HotelDocument{
		ID:         processing.BuildDocumentID(event.SearchID, h.ID),
		SearchID:   event.SearchID,
		PlaceID:    h.ID,
		Name:       strings.TrimSpace(h.Name),
		Address:    strings.TrimSpace(h.Address),
		Location:   models.GeoPoint{Lat: h.Coordinate.Lat, Lon: h.Coordinate.Lng},
		Rating:     h.Rating,
		Available:  h.Available,
		MatchScore: h.MatchScore,
		Facilities: h.Facilities,
		Keywords:   processing.HotelKeywords(h, keywordLimit, keywordMinLen),
		CheckIn:    event.Query.CheckIn,
		CheckOut:   event.Query.CheckOut,
		Guests:     event.Query.Guests,
		Timestamp:  ts,
	}
	if h.Price.Valid {
		amount := h.Price.Price.Amount.InexactFloat64()
		doc.Price = &amount
		doc.Currency = strings.ToUpper(h.Price.Price.Currency)
	}
	return doc
}
