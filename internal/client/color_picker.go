package client

import (
	"math/rand"
	"sync"
	"time"

	"github.com/gookit/color"
)

// ColorPicker chooses the display color of a sender name.
type ColorPicker interface {
	For(name string) color.Color
}

var defaultColorPalette = []color.Color{
	color.Red,
	color.Green,
	color.Yellow,
	color.Blue,
	color.Magenta,
	color.Cyan,
}

// newRandomColorPicker assigns a random palette color to each name the first time it is seen.
func newRandomColorPicker(palette []color.Color) ColorPicker {
	if len(palette) == 0 {
		palette = defaultColorPalette
	}
	return &randomColorPicker{
		palette:  append([]color.Color(nil), palette...),
		rng:      rand.New(rand.NewSource(time.Now().UnixNano())),
		assigned: make(map[string]color.Color),
	}
}

type randomColorPicker struct {
	mu       sync.Mutex
	palette  []color.Color
	rng      *rand.Rand
	assigned map[string]color.Color
}

func (p *randomColorPicker) For(name string) color.Color {
	p.mu.Lock()
	defer p.mu.Unlock()

	if c, ok := p.assigned[name]; ok {
		return c
	}
	c := p.palette[p.rng.Intn(len(p.palette))]
	p.assigned[name] = c
	return c
}
