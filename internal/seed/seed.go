// Package seed loads sample listings from a YAML file into the store.
package seed

import (
	"context"
	"errors"
	"os"
	"strings"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"
	"golang.org/x/crypto/bcrypt"
	"golang.org/x/sync/errgroup"
	"gopkg.in/yaml.v3"

	"github.com/sells-group/listings/internal/model"
	"github.com/sells-group/listings/internal/store"
	"github.com/sells-group/listings/pkg/geocode"
)

// File is the seed document.
type File struct {
	Owner    Owner   `yaml:"owner"`
	Listings []Entry `yaml:"listings"`
}

// Owner is the account that owns every seeded listing.
type Owner struct {
	Username string `yaml:"username"`
	Email    string `yaml:"email"`
	Password string `yaml:"password"`
}

// Entry is one listing to seed. Coordinates, when present, are [lng, lat]
// and skip geocoding.
type Entry struct {
	Title       string    `yaml:"title"`
	Description string    `yaml:"description"`
	Price       float64   `yaml:"price"`
	Location    string    `yaml:"location"`
	Image       Image     `yaml:"image"`
	Coordinates []float64 `yaml:"coordinates"`
}

// Image references an already hosted picture.
type Image struct {
	URL      string `yaml:"url"`
	Filename string `yaml:"filename"`
}

// Summary reports what a run did.
type Summary struct {
	Created int
	Skipped []string
}

// LoadFile reads and parses a seed file.
func LoadFile(path string) (*File, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, eris.Wrapf(err, "seed: read %s", path)
	}
	return Parse(data)
}

// Parse decodes a seed document and checks the owner block.
func Parse(data []byte) (*File, error) {
	var f File
	if err := yaml.Unmarshal(data, &f); err != nil {
		return nil, eris.Wrap(err, "seed: parse yaml")
	}
	if strings.TrimSpace(f.Owner.Username) == "" || f.Owner.Password == "" {
		return nil, eris.New("seed: owner username and password are required")
	}
	return &f, nil
}

// Seeder writes a seed File through the store, geocoding entries that carry
// no coordinates.
type Seeder struct {
	store       store.Store
	geocoder    geocode.Client
	concurrency int
}

// New creates a Seeder. concurrency bounds parallel geocoding lookups.
func New(st store.Store, gc geocode.Client, concurrency int) *Seeder {
	if concurrency <= 0 {
		concurrency = 1
	}
	return &Seeder{store: st, geocoder: gc, concurrency: concurrency}
}

// Run seeds f. Entries that cannot be geocoded or fail validation are
// skipped; listings are written in file order.
func (s *Seeder) Run(ctx context.Context, f *File) (*Summary, error) {
	owner, err := s.ensureOwner(ctx, f.Owner)
	if err != nil {
		return nil, err
	}

	resolved := make([]*model.Listing, len(f.Listings))
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(s.concurrency)

	for i, e := range f.Listings {
		g.Go(func() error {
			resolved[i] = s.resolve(gctx, owner.ID, e)
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, eris.Wrap(err, "seed: resolve listings")
	}

	sum := &Summary{}
	for i, l := range resolved {
		title := f.Listings[i].Title
		if l == nil {
			sum.Skipped = append(sum.Skipped, title)
			continue
		}
		if err := s.store.CreateListing(ctx, l); err != nil {
			if errors.Is(err, model.ErrInvalidListing) {
				zap.L().Warn("seed: invalid listing skipped", zap.String("title", title), zap.Error(err))
				sum.Skipped = append(sum.Skipped, title)
				continue
			}
			return sum, eris.Wrapf(err, "seed: create %q", title)
		}
		sum.Created++
	}

	zap.L().Info("seed: complete",
		zap.Int("created", sum.Created),
		zap.Int("skipped", len(sum.Skipped)),
	)
	return sum, nil
}

// resolve turns an entry into a listing, or nil when it has to be skipped.
func (s *Seeder) resolve(ctx context.Context, ownerID string, e Entry) *model.Listing {
	l := &model.Listing{
		Title:       strings.TrimSpace(e.Title),
		Description: strings.TrimSpace(e.Description),
		Price:       e.Price,
		Location:    strings.TrimSpace(e.Location),
		Image:       model.Image{URL: e.Image.URL, Filename: e.Image.Filename},
		OwnerID:     ownerID,
	}
	log := zap.L().With(zap.String("title", l.Title))

	switch {
	case len(e.Coordinates) == 2:
		lng, lat := e.Coordinates[0], e.Coordinates[1]
		if lng < -180 || lng > 180 || lat < -90 || lat > 90 {
			log.Warn("seed: coordinates out of range", zap.Float64s("coordinates", e.Coordinates))
			return nil
		}
		l.Geometry = model.NewPoint(lng, lat)
	case len(e.Coordinates) != 0:
		log.Warn("seed: coordinates must be [lng, lat]", zap.Float64s("coordinates", e.Coordinates))
		return nil
	case l.Location != "":
		results := s.geocoder.Forward(ctx, l.Location, 1)
		if len(results) == 0 {
			log.Warn("seed: geocoding failed, skipping", zap.String("location", l.Location))
			return nil
		}
		l.Location = results[0].Formatted
		l.Geometry = model.NewPoint(results[0].Longitude, results[0].Latitude)
	}
	return l
}

// ensureOwner returns the seed owner, creating the account on first run.
func (s *Seeder) ensureOwner(ctx context.Context, o Owner) (*model.User, error) {
	username := strings.TrimSpace(o.Username)
	u, err := s.store.GetUserByUsername(ctx, username)
	if err == nil {
		return u, nil
	}
	if !errors.Is(err, store.ErrNotFound) {
		return nil, eris.Wrap(err, "seed: look up owner")
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(o.Password), bcrypt.DefaultCost)
	if err != nil {
		return nil, eris.Wrap(err, "seed: hash owner password")
	}
	u = &model.User{Username: username, Email: strings.TrimSpace(o.Email), PasswordHash: string(hash)}
	if err := s.store.CreateUser(ctx, u); err != nil {
		if errors.Is(err, store.ErrDuplicate) {
			return s.store.GetUserByUsername(ctx, username)
		}
		return nil, eris.Wrap(err, "seed: create owner")
	}
	zap.L().Info("seed: created owner", zap.String("username", username), zap.String("user_id", u.ID))
	return u, nil
}
