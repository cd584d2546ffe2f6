// Seeds the movie catalog and prepares the seat-state schema so a fresh
// deployment has something to book against.
package main

import (
	"context"
	"fmt"
	"log"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"

	"github.com/gastcinema/seat-reservations/internal/adapters/crdb"
	mongoadapter "github.com/gastcinema/seat-reservations/internal/adapters/mongo"
	"github.com/gastcinema/seat-reservations/internal/config"
	"github.com/gastcinema/seat-reservations/internal/domain"
	"github.com/gastcinema/seat-reservations/internal/observability"
)

var movies = []domain.Movie{
	{ID: "chainsaw-man-reze-arc", Title: "Chainsaw Man: The Movie - Reze Arc", Genre: "Animation / Action / Horror", Duration: 120, Featured: true},
	{ID: "fantastic-four-first-steps", Title: "The Fantastic Four: First Steps", Genre: "Action / Sci-Fi / Adventure", Duration: 150, Featured: true},
	{ID: "superman", Title: "Superman", Genre: "Action / Sci-Fi / Adventure", Duration: 145, Featured: true},
	{ID: "the-batman", Title: "The Batman", Genre: "Action / Crime / Drama", Duration: 176, Featured: true},
	{ID: "demon-slayer-infinity-castle", Title: "Demon Slayer: Infinity Castle", Genre: "Animation / Action / Fantasy", Duration: 135, Featured: true},
}

var showTimes = []string{"14:00", "17:30", "20:30"}

func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("failed to load config: %v", err)
	}

	logger := observability.NewLogger()
	ctx := context.Background()

	pool, err := pgxpool.New(ctx, cfg.DBDSN)
	if err != nil {
		log.Fatalf("failed to connect to db: %v", err)
	}
	defer pool.Close()
	store := crdb.NewStore(pool)
	if err := store.EnsureSchema(ctx); err != nil {
		log.Fatalf("failed to ensure schema: %v", err)
	}

	mongoClient, err := mongo.Connect(ctx, options.Client().ApplyURI(cfg.MongoURI))
	if err != nil {
		log.Fatalf("failed to connect to mongo: %v", err)
	}
	defer mongoClient.Disconnect(ctx)
	catalog := mongoadapter.NewCatalog(mongoClient.Database("cinema"), logger)

	for _, m := range movies {
		if err := catalog.CreateMovie(ctx, m); err != nil {
			log.Fatalf("failed to create movie %s: %v", m.ID, err)
		}
	}
	logger.WithField("count", len(movies)).Info("movies seeded")

	// Three days of showtimes per movie on the standard grid.
	count := 0
	for _, m := range movies {
		for day := 0; day < 3; day++ {
			date := time.Now().AddDate(0, 0, day).Format("2006-01-02")
			for i, t := range showTimes {
				st := domain.Showtime{
					ID:      fmt.Sprintf("%s-%s-%d", m.ID, date, i),
					MovieID: m.ID,
					Date:    date,
					Time:    t,
					Hall:    "Standard Hall",
					Price:   250,
					Rows:    domain.DefaultRows,
					Cols:    domain.DefaultCols,
				}
				if err := catalog.CreateShowtime(ctx, st); err != nil {
					log.Fatalf("failed to create showtime %s: %v", st.ID, err)
				}
				count++
			}
		}
	}
	logger.WithField("count", count).Info("showtimes seeded")
}
