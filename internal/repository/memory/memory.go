// Package memory provides in-process stores with the same semantics as the
// MySQL stores in package repository: uniqueness conflicts, foreign key
// checks, cascades and SET NULL on category delete.  All stores created from
// one DB share a single lock so cross-table effects are atomic.
package memory

import (
	"sort"
	"strings"
	"sync"

	"github.com/iliyamo/title-reviews/internal/model"
)

type titleRow struct {
	model.Title
	categoryID uint64
	genreIDs   []uint64
}

// DB is the shared in-process state behind every store in this package.
type DB struct {
	mu sync.RWMutex

	nextID uint64

	users      map[uint64]model.User
	categories map[uint64]model.Category
	genres     map[uint64]model.Genre
	titles     map[uint64]titleRow
	reviews    map[uint64]model.Review
	comments   map[uint64]model.Comment
}

func New() *DB {
	return &DB{
		users:      make(map[uint64]model.User),
		categories: make(map[uint64]model.Category),
		genres:     make(map[uint64]model.Genre),
		titles:     make(map[uint64]titleRow),
		reviews:    make(map[uint64]model.Review),
		comments:   make(map[uint64]model.Comment),
	}
}

func (db *DB) id() uint64 {
	db.nextID++
	return db.nextID
}

func (db *DB) Users() *UserStore { return &UserStore{db: db} }
func (db *DB) Categories() *CategoryStore { return &CategoryStore{db: db} }
func (db *DB) Genres() *GenreStore { return &GenreStore{db: db} }
func (db *DB) Titles() *TitleStore { return &TitleStore{db: db} }
func (db *DB) Reviews() *ReviewStore { return &ReviewStore{db: db} }
func (db *DB) Comments() *CommentStore { return &CommentStore{db: db} }

// window slices one page out of an already ordered result.
func window[T any](all []T, page model.Page) []T {
	lo, hi := page.Window(len(all))
	return all[lo:hi]
}

func containsFold(s, sub string) bool {
	return strings.Contains(strings.ToLower(s), strings.ToLower(sub))
}

func sortByNameID[T any](rows []T, key func(T) (string, uint64)) {
	sort.Slice(rows, func(i, j int) bool {
		ni, ii := key(rows[i])
		nj, ij := key(rows[j])
		if ni != nj {
			return ni < nj
		}
		return ii < ij
	})
}
