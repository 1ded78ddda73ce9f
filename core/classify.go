// Copyright 2025 Poiesic Systems
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.


package core

import (
	"path/filepath"
	"slices"
	"strings"
)

// Category identifies the ingestor family a file belongs to.
type Category string

const (
	CategoryText  Category = "text"
	CategoryPDF   Category = "pdf"
	CategoryWord  Category = "word"
	CategoryImage Category = "image"
	CategorySound Category = "sound"
)

// Categories lists every known category in dispatch order.
var Categories = []Category{
	CategoryText,
	CategoryPDF,
	CategoryWord,
	CategoryImage,
	CategorySound,
}

// extensionCategories maps lower-case file extensions to categories.
var extensionCategories = map[string]Category{
	"txt":  CategoryText,
	"csv":  CategoryText,
	"json": CategoryText,
	"pdf":  CategoryPDF,
	"doc":  CategoryWord,
	"docx": CategoryWord,
	"jpg":  CategoryImage,
	"jpeg": CategoryImage,
	"png":  CategoryImage,
	"gif":  CategoryImage,
	"bmp":  CategoryImage,
	"tiff": CategoryImage,
	"mp3":  CategorySound,
	"wav":  CategorySound,
	"aac":  CategorySound,
	"flac": CategorySound,
	"ogg":  CategorySound,
}

// Extension returns the lower-cased substring after the last '.' of the
// file's base name. A name without a '.' is returned whole, so a file named
// "pdf" has extension "pdf".
func Extension(path string) string {
	base := filepath.Base(path)
	if i := strings.LastIndexByte(base, '.'); i >= 0 {
		base = base[i+1:]
	}
	return strings.ToLower(base)
}

// Classify maps a file path to its category by extension.
// The second return value is false for unsupported extensions.
func Classify(path string) (Category, bool) {
	category, ok := extensionCategories[Extension(path)]
	return category, ok
}

// Extensions returns the sorted extensions belonging to a category.
func Extensions(category Category) []string {
	var exts []string
	for ext, c := range extensionCategories {
		if c == category {
			exts = append(exts, ext)
		}
	}
	slices.Sort(exts)
	return exts
}

// Valid reports whether c is one of the known categories.
func (c Category) Valid() bool {
	return slices.Contains(Categories, c)
}
