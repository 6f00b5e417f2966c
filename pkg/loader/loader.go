// Package loader reads input feeds for the READ instruction from CSV, JSON,
// or Parquet files.
//
// A feed is a table; one of its columns supplies the values served to READ
// in row order. By default the column named "value" is used, or the first
// column when no such column exists.
package loader

import (
	"context"
	"errors"
	"fmt"
	"math"
	"path/filepath"
	"strconv"
	"strings"

	dataframe "github.com/rocketlaunchr/dataframe-go"

	"github.com/akhildatla/simpletron/pkg/simerr"
	"github.com/akhildatla/simpletron/pkg/vm"
)

// DefaultColumn is the column read when none is named.
const DefaultColumn = "value"

// Error definitions
var (
	ErrEmptyFeed         = errors.New("empty input feed")
	ErrUnsupportedFormat = errors.New("unsupported input feed format")
	ErrNoColumn          = errors.New("column not found")
	ErrInvalidValue      = errors.New("invalid input value")
)

// Load reads a feed, choosing the format from the file extension.
func Load(ctx context.Context, path string) (*dataframe.DataFrame, error) {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".csv":
		return LoadCSV(ctx, path)
	case ".json":
		return LoadJSON(ctx, path)
	case ".parquet":
		return LoadParquet(ctx, path)
	default:
		return nil, fmt.Errorf("%w: %q", ErrUnsupportedFormat, filepath.Ext(path))
	}
}

// LoadInputs reads column of the feed at path as machine words. An empty
// column name selects the default column.
func LoadInputs(ctx context.Context, path, column string) ([]vm.Word, error) {
	df, err := Load(ctx, path)
	if err != nil {
		return nil, simerr.IO("loading input feed "+path, err)
	}
	words, err := Words(df, column)
	if err != nil {
		return nil, simerr.IO("loading input feed "+path, err)
	}
	return words, nil
}

// Words converts one column of df to machine words in row order. Every value
// must be an integer that fits in a word; missing values are rejected.
func Words(df *dataframe.DataFrame, column string) ([]vm.Word, error) {
	s, err := selectSeries(df, column)
	if err != nil {
		return nil, err
	}

	n := s.NRows()
	words := make([]vm.Word, 0, n)
	for row := 0; row < n; row++ {
		w, err := toWord(s.Value(row))
		if err != nil {
			return nil, fmt.Errorf("row %d of %q: %w", row+1, s.Name(), err)
		}
		words = append(words, w)
	}
	return words, nil
}

func selectSeries(df *dataframe.DataFrame, column string) (dataframe.Series, error) {
	if df == nil || len(df.Series) == 0 {
		return nil, ErrEmptyFeed
	}

	name := column
	if name == "" {
		name = DefaultColumn
	}
	if idx, err := df.NameToColumn(name); err == nil {
		return df.Series[idx], nil
	}
	if column != "" {
		return nil, fmt.Errorf("%w: %q", ErrNoColumn, column)
	}
	return df.Series[0], nil
}

func toWord(v interface{}) (vm.Word, error) {
	switch x := v.(type) {
	case nil:
		return 0, fmt.Errorf("%w: missing value", ErrInvalidValue)
	case int64:
		if x < math.MinInt32 || x > math.MaxInt32 {
			return 0, fmt.Errorf("%w: %d out of range", ErrInvalidValue, x)
		}
		return vm.Word(x), nil
	case float64:
		if x != math.Trunc(x) || x < math.MinInt32 || x > math.MaxInt32 {
			return 0, fmt.Errorf("%w: %v", ErrInvalidValue, x)
		}
		return vm.Word(x), nil
	case string:
		n, err := strconv.ParseInt(strings.TrimSpace(x), 10, 32)
		if err != nil {
			return 0, fmt.Errorf("%w: %q", ErrInvalidValue, x)
		}
		return vm.Word(n), nil
	default:
		return toWord(fmt.Sprint(x))
	}
}
