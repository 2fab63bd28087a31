package cmd

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/schollz/progressbar/v3"
	"github.com/spf13/cobra"

	"github.com/kozaktomas/face-registry/internal/config"
	"github.com/kozaktomas/face-registry/internal/imaging"
	"github.com/kozaktomas/face-registry/internal/registration"
)

var uploadCmd = &cobra.Command{
	Use:   "upload <file-or-folder> [file-or-folder...]",
	Short: "Add faces from image files",
	Long: `Add one or more image files to the store as face records.

Every file is re-encoded as JPEG before it is stored. Folders are scanned for
image files (non-recursive unless -r is given).
Supported formats: jpg, jpeg, png, gif, bmp, tiff, webp

Either give one label for all files or derive the label from each file name
("alice_smith.jpg" becomes "alice smith").

Example:
  face-registry upload --label "Alice" alice1.jpg alice2.png
  face-registry upload --label-from-filename /path/to/faces
  face-registry upload -r --label-from-filename /path/to/faces`,
	Args: cobra.MinimumNArgs(1),
	RunE: runUpload,
}

func init() {
	rootCmd.AddCommand(uploadCmd)
	uploadCmd.Flags().String("label", "", "Label stored with every file")
	uploadCmd.Flags().Bool("label-from-filename", false, "Use each file name (without extension) as its label")
	uploadCmd.Flags().BoolP("recursive", "r", false, "Search folders recursively")
	uploadCmd.MarkFlagsMutuallyExclusive("label", "label-from-filename")
	uploadCmd.MarkFlagsOneRequired("label", "label-from-filename")
}

// isImageFile checks if a file has an extension the file source can decode
func isImageFile(name string) bool {
	switch strings.ToLower(filepath.Ext(name)) {
	case ".jpg", ".jpeg", ".png", ".gif", ".bmp", ".tif", ".tiff", ".webp":
		return true
	}
	return false
}

// labelFromFilename turns "alice_smith-2.jpg" into "alice smith 2".
func labelFromFilename(path string) string {
	name := strings.TrimSuffix(filepath.Base(path), filepath.Ext(path))
	name = strings.NewReplacer("_", " ", "-", " ").Replace(name)
	return strings.Join(strings.Fields(name), " ")
}

// collectImageFiles expands folders into the image files they contain. Files given
// directly are kept even without a known extension so the decoder can judge them.
func collectImageFiles(paths []string, recursive bool) ([]string, error) {
	var files []string
	for _, path := range paths {
		info, err := os.Stat(path)
		if err != nil {
			return nil, fmt.Errorf("cannot access %s: %w", path, err)
		}
		if !info.IsDir() {
			files = append(files, path)
			continue
		}

		if recursive {
			err := filepath.WalkDir(path, func(p string, d os.DirEntry, err error) error {
				if err != nil {
					return err
				}
				if !d.IsDir() && isImageFile(d.Name()) {
					files = append(files, p)
				}
				return nil
			})
			if err != nil {
				return nil, fmt.Errorf("cannot walk folder %s: %w", path, err)
			}
			continue
		}

		entries, err := os.ReadDir(path)
		if err != nil {
			return nil, fmt.Errorf("cannot read folder %s: %w", path, err)
		}
		for _, entry := range entries {
			if !entry.IsDir() && isImageFile(entry.Name()) {
				files = append(files, filepath.Join(path, entry.Name()))
			}
		}
	}
	return files, nil
}

func runUpload(cmd *cobra.Command, args []string) error {
	label := mustGetString(cmd, "label")
	fromFilename := mustGetBool(cmd, "label-from-filename")

	files, err := collectImageFiles(args, mustGetBool(cmd, "recursive"))
	if err != nil {
		return err
	}
	if len(files) == 0 {
		fmt.Println("No image files found.")
		return nil
	}

	cfg := config.Load()
	ctx := context.Background()

	st, err := openStore(ctx, cfg)
	if err != nil {
		return err
	}
	defer st.Close()

	opts := registration.Options{
		Submitter: st.submitter,
		Files:     imaging.NewFileDecoder(cfg.Camera.Quality, cfg.Upload.MaxBytes, cfg.Upload.MaxDimension),
	}

	fmt.Printf("Adding %d image(s) to the %s store\n\n", len(files), cfg.Store.Backend)

	bar := progressbar.NewOptions(len(files),
		progressbar.OptionSetDescription("Uploading"),
		progressbar.OptionShowCount(),
		progressbar.OptionShowIts(),
		progressbar.OptionSetItsString("files"),
		progressbar.OptionShowElapsedTimeOnFinish(),
		progressbar.OptionSetPredictTime(true),
		progressbar.OptionFullWidth(),
		progressbar.OptionSetTheme(progressbar.Theme{
			Saucer:        "=",
			SaucerHead:    ">",
			SaucerPadding: " ",
			BarStart:      "[",
			BarEnd:        "]",
		}),
	)

	var failures []string
	added := 0
	for _, path := range files {
		fileLabel := label
		if fromFilename {
			fileLabel = labelFromFilename(path)
		}

		if err := uploadFile(ctx, opts, cfg, path, fileLabel); err != nil {
			failures = append(failures, fmt.Sprintf("%s: %v", filepath.Base(path), err))
		} else {
			added++
		}
		bar.Add(1)
	}
	fmt.Println()

	for _, msg := range failures {
		fmt.Printf("Failed: %s\n", msg)
	}

	fmt.Printf("\nDone! Added %d of %d file(s)\n", added, len(files))
	if added == 0 {
		return errors.New("no files were added")
	}
	return nil
}

// uploadFile runs one file through its own admin surface.
func uploadFile(ctx context.Context, opts registration.Options, cfg *config.Config, path, label string) error {
	surface := registration.NewSurface("cli-"+filepath.Base(path), registration.KindAdmin, opts)
	defer surface.Close()

	if err := surface.LoadImagePath(path); err != nil {
		return surfaceError(surface, err)
	}
	if err := surface.SetLabel(label); err != nil {
		return err
	}

	submitCtx, cancel := context.WithTimeout(ctx, cfg.Store.Timeout)
	defer cancel()

	if _, err := surface.Submit(submitCtx); err != nil {
		return surfaceError(surface, err)
	}
	return nil
}
