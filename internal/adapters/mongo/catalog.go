// Package mongo holds the movie/showtime catalog and the audit trail. The
// booking core consumes the catalog read-only; catalog management is the
// concern of an external admin flow.
package mongo

import (
	"context"
	"time"

	"github.com/cockroachdb/errors"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"

	"github.com/gastcinema/seat-reservations/internal/domain"
	"github.com/gastcinema/seat-reservations/internal/observability"
)

type Catalog struct {
	movies    *mongo.Collection
	showtimes *mongo.Collection
	logger    observability.Logger
}

func NewCatalog(db *mongo.Database, logger observability.Logger) *Catalog {
	return &Catalog{
		movies:    db.Collection("movies"),
		showtimes: db.Collection("showtimes"),
		logger:    logger,
	}
}

type movieDoc struct {
	ID       string    `bson:"_id"`
	Title    string    `bson:"title"`
	Genre    string    `bson:"genre"`
	Duration int       `bson:"duration"`
	Poster   string    `bson:"poster"`
	Featured bool      `bson:"featured"`
	Created  time.Time `bson:"created_at"`
}

type showtimeDoc struct {
	ID      string  `bson:"_id"`
	MovieID string  `bson:"movie_id"`
	Date    string  `bson:"date"`
	Time    string  `bson:"time"`
	Hall    string  `bson:"hall"`
	Price   float64 `bson:"price"`
	Rows    int     `bson:"rows"`
	Cols    int     `bson:"cols"`
}

func (c *Catalog) GetShowtime(ctx context.Context, showtimeID string) (domain.Showtime, error) {
	var doc showtimeDoc
	err := c.showtimes.FindOne(ctx, bson.M{"_id": showtimeID}).Decode(&doc)
	if errors.Is(err, mongo.ErrNoDocuments) {
		return domain.Showtime{}, errors.Wrapf(domain.ErrNotFound, "showtime %s", showtimeID)
	}
	if err != nil {
		c.logger.WithField("showtime_id", showtimeID).Error("failed to get showtime", err)
		return domain.Showtime{}, err
	}
	return domain.Showtime{
		ID:      doc.ID,
		MovieID: doc.MovieID,
		Date:    doc.Date,
		Time:    doc.Time,
		Hall:    doc.Hall,
		Price:   doc.Price,
		Rows:    doc.Rows,
		Cols:    doc.Cols,
	}, nil
}

func (c *Catalog) CountMovies(ctx context.Context) (int, error) {
	n, err := c.movies.CountDocuments(ctx, bson.M{})
	return int(n), err
}

func (c *Catalog) GetMovie(ctx context.Context, movieID string) (domain.Movie, error) {
	var doc movieDoc
	err := c.movies.FindOne(ctx, bson.M{"_id": movieID}).Decode(&doc)
	if errors.Is(err, mongo.ErrNoDocuments) {
		return domain.Movie{}, errors.Wrapf(domain.ErrNotFound, "movie %s", movieID)
	}
	if err != nil {
		return domain.Movie{}, err
	}
	return domain.Movie{
		ID:       doc.ID,
		Title:    doc.Title,
		Genre:    doc.Genre,
		Duration: doc.Duration,
		Poster:   doc.Poster,
		Featured: doc.Featured,
	}, nil
}

func (c *Catalog) ListShowtimes(ctx context.Context, movieID string) ([]domain.Showtime, error) {
	cur, err := c.showtimes.Find(ctx, bson.M{"movie_id": movieID})
	if err != nil {
		return nil, err
	}
	defer cur.Close(ctx)

	var out []domain.Showtime
	for cur.Next(ctx) {
		var doc showtimeDoc
		if err := cur.Decode(&doc); err != nil {
			return nil, err
		}
		out = append(out, domain.Showtime{
			ID:      doc.ID,
			MovieID: doc.MovieID,
			Date:    doc.Date,
			Time:    doc.Time,
			Hall:    doc.Hall,
			Price:   doc.Price,
			Rows:    doc.Rows,
			Cols:    doc.Cols,
		})
	}
	return out, cur.Err()
}

// CreateMovie and CreateShowtime exist for seeding; the admin UI is a
// separate collaborator.
func (c *Catalog) CreateMovie(ctx context.Context, m domain.Movie) error {
	_, err := c.movies.InsertOne(ctx, movieDoc{
		ID:       m.ID,
		Title:    m.Title,
		Genre:    m.Genre,
		Duration: m.Duration,
		Poster:   m.Poster,
		Featured: m.Featured,
		Created:  time.Now().UTC(),
	})
	return err
}

func (c *Catalog) CreateShowtime(ctx context.Context, st domain.Showtime) error {
	_, err := c.showtimes.InsertOne(ctx, showtimeDoc{
		ID:      st.ID,
		MovieID: st.MovieID,
		Date:    st.Date,
		Time:    st.Time,
		Hall:    st.Hall,
		Price:   st.Price,
		Rows:    st.Rows,
		Cols:    st.Cols,
	})
	return err
}
