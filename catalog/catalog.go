/*
Package catalog maintains an SQLite index of TGA images, keyed by path and
recording the checksum and basic properties of each image.
*/
package catalog

import (
	"crypto/sha1"
	"database/sql"
	"fmt"
	"io"
	"os"
	"path/filepath"

	"github.com/bodgit/tga"
	_ "github.com/mattn/go-sqlite3"
)

// Entry describes a cataloged image
type Entry struct {
	Path      string
	SHA1      string
	Width     int
	Height    int
	ImageType tga.ImageType
	Footer    bool
}

// Catalog is an SQLite database of images
type Catalog struct {
	db *sql.DB
}

// Open opens, creating if necessary, the catalog database at file
func Open(file string) (*Catalog, error) {
	db, err := sql.Open("sqlite3", file)
	if err != nil {
		return nil, err
	}
	// Writes from concurrent workers are serialised
	db.SetMaxOpenConns(1)

	if _, err = db.Exec("CREATE TABLE IF NOT EXISTS image (id INTEGER PRIMARY KEY NOT NULL, path TEXT NOT NULL UNIQUE, sha1 TEXT NOT NULL, width INTEGER NOT NULL, height INTEGER NOT NULL, type INTEGER NOT NULL, footer INTEGER NOT NULL)"); err != nil {
		db.Close()
		return nil, err
	}

	return &Catalog{
		db: db,
	}, nil
}

// Close closes the database
func (c *Catalog) Close() error {
	return c.db.Close()
}

func sha1File(file string) (string, error) {
	f, err := os.Open(file)
	if err != nil {
		return "", err
	}
	defer f.Close()

	h := sha1.New()
	if _, err := io.Copy(h, f); err != nil {
		return "", err
	}

	return fmt.Sprintf("%X", h.Sum(nil)), nil
}

// Record adds or replaces the entry for the image stored at path
func (c *Catalog) Record(path string, img *tga.Container) error {
	path, err := filepath.Abs(path)
	if err != nil {
		return err
	}

	sha, err := sha1File(path)
	if err != nil {
		return err
	}

	h := img.Header()
	if _, err := c.db.Exec("INSERT OR REPLACE INTO image (path, sha1, width, height, type, footer) VALUES (?, ?, ?, ?, ?, ?)", path, sha, h.Width, h.Height, h.ImageType, img.Footer() != nil); err != nil {
		return err
	}

	return nil
}

// Lookup returns the entry for path or nil if it has not been recorded
func (c *Catalog) Lookup(path string) (*Entry, error) {
	path, err := filepath.Abs(path)
	if err != nil {
		return nil, err
	}

	e := Entry{Path: path}
	switch err := c.db.QueryRow("SELECT sha1, width, height, type, footer FROM image WHERE path = ?", path).Scan(&e.SHA1, &e.Width, &e.Height, &e.ImageType, &e.Footer); err {
	case sql.ErrNoRows:
		return nil, nil
	case nil:
		return &e, nil
	default:
		return nil, err
	}
}

// FindBySHA1 returns the paths of every image with the given checksum
func (c *Catalog) FindBySHA1(sha string) ([]string, error) {
	rows, err := c.db.Query("SELECT path FROM image WHERE sha1 = ? ORDER BY path", sha)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var paths []string
	for rows.Next() {
		var path string
		if err := rows.Scan(&path); err != nil {
			return nil, err
		}
		paths = append(paths, path)
	}

	return paths, rows.Err()
}
