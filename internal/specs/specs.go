// Package specs reads task specifications stored on the ARF branch.
package specs

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/ducks/arf/internal/arferr"
)

// Ext is the spec file extension.
const Ext = ".arf"

// List returns spec names (file stems), sorted.
func List(dir string) ([]string, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil, arferr.Uninitialized(dir)
		}
		return nil, arferr.Wrap(arferr.KindStorage, dir, "reading specs", err)
	}

	names := []string{}
	for _, e := range entries {
		if e.IsDir() || !strings.HasSuffix(e.Name(), Ext) {
			continue
		}
		names = append(names, strings.TrimSuffix(e.Name(), Ext))
	}
	sort.Strings(names)
	return names, nil
}

// Show returns the content of the named spec. The name may carry the
// extension.
func Show(dir, name string) (string, error) {
	name = strings.TrimSuffix(strings.TrimSpace(name), Ext)
	if name == "" || strings.ContainsAny(name, `/\`) || name == "." || name == ".." {
		return "", arferr.New(arferr.KindValidation, name, fmt.Sprintf("invalid spec name %q", name))
	}
	if _, err := os.Stat(dir); errors.Is(err, fs.ErrNotExist) {
		return "", arferr.Uninitialized(dir)
	}

	data, err := os.ReadFile(filepath.Join(dir, name+Ext))
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return "", arferr.New(arferr.KindRefNotFound, name,
				fmt.Sprintf("spec not found: %s (see 'arf spec list')", name))
		}
		return "", arferr.Wrap(arferr.KindStorage, name, "reading spec", err)
	}
	return string(data), nil
}
