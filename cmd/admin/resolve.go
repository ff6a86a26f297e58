package main

import (
	"flag"
	"image/color"
	"log"
	"os"
	"strings"

	"biomemap.ai/internal/persistence/imageio"
	"biomemap.ai/internal/sim/catalogs"
	"biomemap.ai/internal/sim/service"
	"biomemap.ai/internal/sim/world/terrain/imagemap"
	"biomemap.ai/internal/sim/world/terrain/layer"
)

// resolveCmd resolves the configured image without the snapshot cache and
// prints its unknown-color report.
func resolveCmd(args []string) {
	fs := flag.NewFlagSet("resolve", flag.ExitOnError)
	configDir := fs.String("configs", "./configs", "config directory")
	tuningPath := fs.String("tuning", "", "path to tuning.yaml (default: <configs>/tuning.yaml)")
	image := fs.String("image", "", "image to resolve instead of image_layer.image_file")
	noFix := fs.Bool("no_fix", false, "do not write the repaired image")
	_ = fs.Parse(args)

	tune, cats, err := loadConfig(*configDir, *tuningPath)
	if err != nil {
		fail(1, err)
	}
	if s := strings.TrimSpace(*image); s != "" {
		tune.ImageLayer.ImageFile = s
	}
	if *noFix {
		tune.ImageLayer.WriteFixedImage = false
	}

	logger := log.New(os.Stderr, "[admin] ", log.LstdFlags)
	res, err := service.BuildLayer(service.BuildOptions{
		ConfigDir: *configDir,
		Tuning:    tune,
		Catalogs:  cats,
		Sink:      imagemap.LogSink{Logger: logger},
		Logger:    logger,
	})
	if err != nil {
		fail(1, "resolve:", err)
	}
	rep := res.Report
	printJSON(struct {
		Image         string                  `json:"image"`
		Digest        string                  `json:"digest"`
		Width         int                     `json:"width"`
		Height        int                     `json:"height"`
		Orientation   string                  `json:"orientation"`
		Unknown       []imagemap.UnknownColor `json:"unknown_colors"`
		Passes        int                     `json:"passes"`
		RepairedCells int                     `json:"repaired_cells"`
		FixedImage    string                  `json:"fixed_image,omitempty"`
		ElapsedMs     int64                   `json:"elapsed_ms"`
	}{
		Image:         res.ImagePath,
		Digest:        res.ImageDigest,
		Width:         rep.Width,
		Height:        rep.Height,
		Orientation:   rep.Orientation.String(),
		Unknown:       rep.Unknown,
		Passes:        rep.Passes,
		RepairedCells: rep.RepairedCells,
		FixedImage:    rep.FixedImage,
		ElapsedMs:     rep.Elapsed.Milliseconds(),
	})
	if rep.EncodeErr != nil {
		fail(1, rep.EncodeErr)
	}
}

// renderCmd queries a rectangle of the layer and writes it as a PNG using each
// biome's preview color.
func renderCmd(args []string) {
	fs := flag.NewFlagSet("render", flag.ExitOnError)
	configDir := fs.String("configs", "./configs", "config directory")
	tuningPath := fs.String("tuning", "", "path to tuning.yaml (default: <configs>/tuning.yaml)")
	dataDir := fs.String("data", "./data", "runtime data directory (snapshot cache); empty disables")
	x := fs.Int("x", 0, "min x")
	z := fs.Int("z", 0, "min z")
	sx := fs.Int("sx", 256, "width in cells")
	sz := fs.Int("sz", 256, "height in cells")
	out := fs.String("out", "render.png", "output PNG")
	_ = fs.Parse(args)

	if *sx <= 0 || *sz <= 0 {
		fail(2, "sx and sz must be positive")
	}
	tune, cats, err := loadConfig(*configDir, *tuningPath)
	if err != nil {
		fail(1, err)
	}
	if *sx**sz > tune.Query.MaxCells {
		fail(2, "rectangle exceeds query.max_cells")
	}
	res, err := service.BuildLayer(service.BuildOptions{
		ConfigDir: *configDir,
		DataDir:   *dataDir,
		Tuning:    tune,
		Catalogs:  cats,
	})
	if err != nil {
		fail(1, "build:", err)
	}
	ids := res.Layer.Query(nil, *x, *z, *sx, *sz)
	if err := imageio.EncodePNG(*out, renderGrid(ids, *sx, *sz, &cats.Biomes)); err != nil {
		fail(1, "write:", err)
	}
	printJSON(map[string]any{"out": *out, "width": *sx, "height": *sz, "from_snapshot": res.FromSnapshot})
}

// renderGrid maps ids (row-major, width w) to opaque preview pixels. Ids
// without a catalog entry render magenta.
func renderGrid(ids []layer.BiomeID, w, h int, cat *catalogs.BiomeCatalog) imagemap.PixelGrid {
	g := imagemap.NewPixelGrid(w, h)
	missing := packRGB(color.RGBA{R: 0xff, B: 0xff})
	for i, id := range ids[:w*h] {
		c := missing
		if int(id) < len(cat.Preview) && cat.Name(id) != "" {
			c = cat.Preview[id]
		}
		g.Pix[i] = 0xFF000000 | c
	}
	return g
}

func packRGB(c color.RGBA) uint32 {
	return uint32(c.R)<<16 | uint32(c.G)<<8 | uint32(c.B)
}
