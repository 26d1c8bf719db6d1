package scan

import (
	"io/fs"
	"path/filepath"
	"sort"
	"strings"

	"github.com/John-Robertt/framex/internal/domain"
)

// ScanVideos 列出 root 下的视频文件（递归），excludeDirs 下的内容不计入。
//
// excludeDirs 若是相对路径则相对 root。抽帧输出目录放在 videos_dir 里时，
// 应把它传进来，避免把输出目录误当成视频来源。
//
// 只做 stat，不读文件内容；不可读的目录会让整个扫描失败。
func ScanVideos(root string, excludeDirs []string) ([]domain.VideoFile, error) {
	root = filepath.Clean(root)
	excluded := buildExcluded(root, excludeDirs)

	files := make([]domain.VideoFile, 0, 16)
	err := filepath.WalkDir(root, func(path string, d fs.DirEntry, walkErr error) error {
		if walkErr != nil {
			return walkErr
		}
		if path != root && isExcluded(path, excluded) {
			if d.IsDir() {
				return filepath.SkipDir
			}
			return nil
		}
		if d.IsDir() {
			return nil
		}

		name := d.Name()
		ext := strings.ToLower(filepath.Ext(name))
		if !IsVideoExt(ext) {
			return nil
		}

		info, err := d.Info()
		if err != nil {
			return err
		}
		rel, err := filepath.Rel(root, path)
		if err != nil {
			return err
		}

		files = append(files, domain.VideoFile{
			AbsPath: path,
			RelPath: rel,
			Name:    name,
			Ext:     ext,
			Size:    info.Size(),
		})
		return nil
	})
	if err != nil {
		return nil, err
	}

	sort.Slice(files, func(i, j int) bool { return files[i].RelPath < files[j].RelPath })
	return files, nil
}

// IsVideoExt 判断（小写）扩展名是否是可识别的视频容器。
func IsVideoExt(ext string) bool {
	switch ext {
	case ".mp4", ".mkv", ".avi", ".mov", ".webm":
		return true
	default:
		return false
	}
}

// Unreferenced 返回 files 中没有被任何类别引用的视频（按 AbsPath 比较）。
func Unreferenced(files []domain.VideoFile, classes []domain.ClassSpec) []domain.VideoFile {
	used := make(map[string]struct{}, len(classes))
	for _, c := range classes {
		used[filepath.Clean(c.Video)] = struct{}{}
	}
	out := make([]domain.VideoFile, 0, len(files))
	for _, f := range files {
		if _, ok := used[filepath.Clean(f.AbsPath)]; ok {
			continue
		}
		out = append(out, f)
	}
	return out
}

func buildExcluded(root string, excludeDirs []string) []string {
	excluded := make([]string, 0, len(excludeDirs))
	for _, x := range excludeDirs {
		x = strings.TrimSpace(x)
		if x == "" {
			continue
		}
		if filepath.IsAbs(x) {
			excluded = append(excluded, filepath.Clean(x))
			continue
		}
		excluded = append(excluded, filepath.Clean(filepath.Join(root, x)))
	}
	sort.Strings(excluded)
	return excluded
}

func isExcluded(path string, excluded []string) bool {
	path = filepath.Clean(path)
	for _, base := range excluded {
		if isUnder(path, base) {
			return true
		}
	}
	return false
}

func isUnder(path, base string) bool {
	if path == base {
		return true
	}
	sep := string(filepath.Separator)
	return strings.HasPrefix(path, base+sep)
}
