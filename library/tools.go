package library

import (
	"fmt"
	"io"
	"io/fs"
	"os"
	"path/filepath"
	"slices"
	"strings"

	"github.com/ZenLiuCN/fn"
	"github.com/pkujhd/goloader"
	"github.com/pkujhd/goloader/obj"
)

// CopyFile copy src to dest, dest gets the permission bits of si, or of src when si is nil.
func CopyFile(src string, dest string, si fs.FileInfo) error {
	in, err := os.Open(src)
	if err != nil {
		return err
	}
	defer fn.IgnoreClose(in)()
	if si == nil {
		if si, err = in.Stat(); err != nil {
			return err
		}
	}
	out, err := os.OpenFile(dest, os.O_WRONLY|os.O_CREATE|os.O_TRUNC, si.Mode().Perm())
	if err != nil {
		return err
	}
	if _, err = io.Copy(out, in); err != nil {
		fn.IgnoreClose(out)()
		return fmt.Errorf("copy %s: %w", src, err)
	}
	if err = out.Close(); err != nil {
		return err
	}
	// OpenFile applies the mode of new files only, through umask
	return os.Chmod(dest, si.Mode().Perm())
}

// CopyDir copy the tree at src into dest, keeping file modes.
func CopyDir(src, dest string) error {
	return filepath.WalkDir(src, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		rel, err := filepath.Rel(src, path)
		if err != nil {
			return err
		}
		info, err := d.Info()
		if err != nil {
			return err
		}
		if d.IsDir() {
			return os.MkdirAll(filepath.Join(dest, rel), info.Mode().Perm()|0o700)
		}
		return CopyFile(path, filepath.Join(dest, rel), info)
	})
}

// Inspect display symbols inside an object file
func Inspect(file, pkg string) ([]string, error) {
	return goloader.Parse(file, pkg)
}

// ObjectImports resolve all imported packages and version (only if it's a module) of an object file.
func ObjectImports(file, pkgPath string) (info *Info, err error) {
	v := &obj.Pkg{Syms: make(map[string]*obj.ObjSymbol, 0), File: file, PkgPath: pkgPath}
	if v.PkgPath == obj.EmptyString {
		v.PkgPath = "main"
	}
	if err = v.Symbols(); err != nil {
		return
	}
	info = parseInfo(v)
	info.File = file
	info.PkgPath = v.PkgPath
	return
}

// LinkableImports resolve imported packages of a serialized linker.
func LinkableImports(in io.Reader) (infos Infos, err error) {
	var link *goloader.Linker
	if link, err = goloader.UnSerialize(in); err != nil {
		return
	}
	for _, pkg := range link.Packages {
		info := parseInfo(pkg)
		info.File = pkg.File
		info.PkgPath = pkg.PkgPath
		infos = append(infos, info)
	}
	return
}

// Infos is a stringer slice of Info
type Infos []*Info

func (i Infos) String() string {
	s := strings.Builder{}
	for _, v := range i {
		s.WriteString(v.String())
	}
	return s.String()
}

// Info contains the import information of an object
type Info struct {
	File    string
	PkgPath string
	Imports map[string]string // with pairs of package import path and version
}

func (i Info) String() string {
	s := strings.Builder{}
	fmt.Fprintf(&s, "%s (%s)\n", i.File, i.PkgPath)
	k := fn.MapKeys(i.Imports)
	slices.Sort(k)
	for _, p := range k {
		if v := i.Imports[p]; v != "" {
			fmt.Fprintf(&s, "\t%s@%s\n", p, v)
		} else {
			fmt.Fprintf(&s, "\t%s\n", p)
		}
	}
	return s.String()
}

func parseInfo(v *obj.Pkg) (i *Info) {
	i = new(Info)
	i.Imports = make(map[string]string)
	for _, pkg := range v.ImportPkgs {
		i.Imports[pkg] = ""
	}
	k := fn.MapKeys(i.Imports)
	for _, f := range v.CUFiles {
		f = strings.TrimPrefix(f, "gofile..")
		if strings.HasPrefix(f, "$GOROOT") {
			continue
		}
		if strings.IndexByte(f, '!') >= 0 {
			f = moduleName(f)
		}
		for _, s := range k {
			x := strings.Index(f, s)
			if x < 0 || i.Imports[s] != "" {
				continue
			}
			f = f[x:]
			if i.Imports[s] = version(f); i.Imports[s] != "" {
				break
			}
		}
	}
	return
}

// version extract the module version of a module cache path: pkg@v1.2.3/file.go
func version(f string) string {
	y := strings.IndexByte(f, '@')
	if y < 0 {
		return ""
	}
	ver := f[y+1:]
	if y = strings.IndexByte(ver, '/'); y >= 0 {
		ver = ver[:y]
	}
	return ver
}

// moduleName decode a module cache path, where '!x' stands for an upper case 'X'.
func moduleName(f string) string {
	v := strings.Builder{}
	x := false
	for _, i := range []byte(f) {
		switch {
		case i == '!':
			x = true
		case x:
			x = false
			v.WriteByte(i - 32)
		default:
			v.WriteByte(i)
		}
	}
	return v.String()
}
