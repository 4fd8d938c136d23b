package core

import (
	"crypto/rand"
	"encoding/hex"
	"log"
	"os"
	"path/filepath"
	"regexp"
	"strings"
)

// CleanString trims all leading and trailing whitespace in `s` and optionally lowers it.
func CleanString(s string, lower ...bool) string {
	s = strings.TrimSpace(s)
	if len(lower) > 0 && lower[0] {
		return strings.ToLower(s)
	}
	return s
}

var slugRegex = regexp.MustCompile(`[^a-z0-9]+`)

// Slugify turns `s` into a URL-safe slug ("Mama Nia's Kitchen" -> "mama-nia-s-kitchen").
func Slugify(s string) string {
	s = slugRegex.ReplaceAllString(CleanString(s, true /* lower */), "-")
	return strings.Trim(s, "-")
}

// RandomRef returns an uppercase hex reference of n bytes, prefixed with `prefix`.
func RandomRef(prefix string, n int) string {
	b := make([]byte, n)
	if _, err := rand.Read(b); err != nil {
		log.Fatalf("core.RandomRef: %v", err)
	}
	return prefix + strings.ToUpper(hex.EncodeToString(b))
}

// Getwd tries to find the project root.
// go-test changes the working directory to the test package being run during tests...
// see: https://stackoverflow.com/questions/23847003/golang-tests-and-working-directory
func Getwd() string {
	root := "chakula"
	wd, err := os.Getwd()
	if err != nil {
		log.Fatal(err)
	}
	currDir := wd
	for {
		if fi, err := os.Stat(currDir); err == nil {
			dirBase := filepath.Base(currDir)
			if dirBase == root && fi.IsDir() {
				return currDir
			}
		}
		newDir := filepath.Dir(currDir)
		if newDir == string(os.PathSeparator) || newDir == currDir {
			return wd // fall back to the actual working directory
		}
		currDir = newDir
	}
}
