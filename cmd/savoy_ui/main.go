package main

import (
	"flag"
	"fmt"
	"image"
	"image/color"
	"log"
	"log/slog"
	"math"
	"os"
	"sync"

	"github.com/hajimehoshi/ebiten/v2"
	"github.com/hajimehoshi/ebiten/v2/ebitenutil"
	"github.com/hajimehoshi/ebiten/v2/inpututil"
	"github.com/hajimehoshi/ebiten/v2/text"
	"golang.org/x/image/font/basicfont"

	"github.com/cbegin/savoy-go"
	"github.com/cbegin/savoy-go/internal/analysis"
)

const (
	windowW      = 900
	windowH      = 600
	uiSampleRate = 48000

	fftSize    = 2048
	ringBufLen = 16384

	keyCount    = 13
	keyVelocity = 100
	demoScore   = "l0.2 c4 e g c5/0.4 r/0.1 a4 f d g/0.6"
)

var (
	bgColor         = color.RGBA{192, 192, 192, 255}
	panelColor      = color.RGBA{192, 192, 192, 255}
	borderColor     = color.RGBA{128, 128, 128, 255}
	bevelLight      = color.RGBA{255, 255, 255, 255}
	bevelDarker     = color.RGBA{64, 64, 64, 255}
	scopeBgColor    = color.RGBA{14, 16, 22, 255}
	waveColor       = color.RGBA{80, 200, 255, 220}
	sliderFillColor = color.RGBA{0, 0, 128, 255}
	labelColor      = color.RGBA{16, 16, 16, 255}
	scopeTextColor  = color.RGBA{190, 190, 190, 255}
	whiteKeyColor   = color.RGBA{245, 245, 245, 255}
	blackKeyColor   = color.RGBA{24, 24, 24, 255}
	heldKeyColor    = color.RGBA{0, 160, 220, 255}
)

// computer keys for the on-screen keyboard, in semitone order
var pianoKeys = [keyCount]ebiten.Key{
	ebiten.KeyA, ebiten.KeyW, ebiten.KeyS, ebiten.KeyE, ebiten.KeyD,
	ebiten.KeyF, ebiten.KeyT, ebiten.KeyG, ebiten.KeyY, ebiten.KeyH,
	ebiten.KeyU, ebiten.KeyJ, ebiten.KeyK,
}

// tap keeps the most recent mono output for the scope.
type tap struct {
	mu       sync.Mutex
	ring     []float32
	writePos int
}

func newTap() *tap {
	return &tap{ring: make([]float32, ringBufLen)}
}

// Tap is called from the audio thread. Keep it minimal: just copy into ring.
func (t *tap) Tap(samples []float32) {
	t.mu.Lock()
	for i := 0; i+1 < len(samples); i += 2 {
		t.ring[t.writePos] = samples[i]
		t.writePos = (t.writePos + 1) % ringBufLen
	}
	t.mu.Unlock()
}

// Snapshot copies the latest len(dst) samples into dst.
func (t *tap) Snapshot(dst []float32) {
	n := min(len(dst), ringBufLen)
	t.mu.Lock()
	start := (t.writePos - n + ringBufLen) % ringBufLen
	for i := 0; i < n; i++ {
		dst[i] = t.ring[(start+i)%ringBufLen]
	}
	t.mu.Unlock()
}

type game struct {
	player   *savoy.Player
	events   <-chan savoy.PlaybackEvent
	tap      *tap
	analyzer *analysis.Analyzer
	snap     []float32

	octave    int
	mouseNote int
	keysHeld  [keyCount]bool
	dragging  int // slider index, -1 when idle

	scopeImg *ebiten.Image
	scopeW   int
	scopeH   int
	peakHz   float64

	status string
}

type uiLayout struct {
	sliders  [5]image.Rectangle
	demo     image.Rectangle
	octave   image.Rectangle
	scope    image.Rectangle
	keyboard image.Rectangle
	status   image.Rectangle
}

func newGame(pl *savoy.Player, t *tap) (*game, error) {
	an, err := analysis.New(fftSize)
	if err != nil {
		return nil, err
	}
	return &game{
		player:    pl,
		events:    pl.Watch(),
		tap:       t,
		analyzer:  an,
		snap:      make([]float32, fftSize),
		octave:    4,
		mouseNote: -1,
		dragging:  -1,
		status:    "Ready",
	}, nil
}

func (g *game) Update() error {
	g.pollEvents()
	g.handleMouse()
	g.handleKeys()
	return nil
}

func (g *game) pollEvents() {
	for {
		select {
		case ev := <-g.events:
			if ev.Kind == savoy.EventPlaybackEnded {
				g.status = "Demo ended"
			}
		default:
			return
		}
	}
}

func (g *game) handleMouse() {
	mx, my := ebiten.CursorPosition()
	l := layoutRects()

	if inpututil.IsMouseButtonJustPressed(ebiten.MouseButtonLeft) {
		switch {
		case pointInRect(mx, my, l.demo):
			if err := g.player.PlayText(demoScore); err != nil {
				g.status = "ERROR - " + err.Error()
			} else {
				g.status = "Playing demo"
			}
			return
		case pointInRect(mx, my, l.octave):
			if mx < l.octave.Min.X+l.octave.Dx()/2 {
				g.octave = max(g.octave-1, 0)
			} else {
				g.octave = min(g.octave+1, 8)
			}
			return
		case pointInRect(mx, my, l.keyboard):
			if k := keyAt(mx, my, l.keyboard); k >= 0 {
				g.mouseNote = g.pitch(k)
				g.player.NoteOn(uint8(g.mouseNote), keyVelocity)
			}
			return
		}
		for i, r := range l.sliders {
			if pointInRect(mx, my, r) {
				g.dragging = i
			}
		}
	}
	if !ebiten.IsMouseButtonPressed(ebiten.MouseButtonLeft) {
		g.dragging = -1
		if g.mouseNote >= 0 {
			g.player.NoteOff(uint8(g.mouseNote))
			g.mouseNote = -1
		}
		return
	}
	if g.dragging >= 0 {
		v := sliderValue(mx, sliderTrack(l.sliders[g.dragging]))
		g.player.SetParameter(uint8(g.dragging), float32(v))
	}
}

func (g *game) handleKeys() {
	for i, key := range pianoKeys {
		switch {
		case inpututil.IsKeyJustPressed(key):
			g.keysHeld[i] = true
			g.player.NoteOn(uint8(g.pitch(i)), keyVelocity)
		case inpututil.IsKeyJustReleased(key):
			g.keysHeld[i] = false
			g.player.NoteOff(uint8(g.pitch(i)))
		}
	}
	if inpututil.IsKeyJustPressed(ebiten.KeyZ) {
		g.octave = max(g.octave-1, 0)
	}
	if inpututil.IsKeyJustPressed(ebiten.KeyX) {
		g.octave = min(g.octave+1, 8)
	}
}

func (g *game) pitch(key int) int {
	return (g.octave+1)*12 + key
}

func (g *game) Draw(screen *ebiten.Image) {
	screen.Fill(bgColor)
	l := layoutRects()

	for i, r := range l.sliders {
		g.drawSlider(screen, r, i)
	}
	drawButton(screen, l.demo, "Play demo")
	drawButton(screen, l.octave, fmt.Sprintf("-  Octave %d  +", g.octave))
	g.drawScope(screen, l.scope)
	g.drawKeyboard(screen, l.keyboard)
	drawPanel(screen, l.status)
	text.Draw(screen, "Status: "+g.status, basicfont.Face7x13, l.status.Min.X+8, l.status.Min.Y+18, labelColor)
}

func (g *game) Layout(outsideW, outsideH int) (int, int) {
	return windowW, windowH
}

func (g *game) Close() { _ = g.player.Stop() }

func layoutRects() uiLayout {
	var l uiLayout
	const pad = 12
	y := pad
	for i := range l.sliders {
		l.sliders[i] = image.Rect(pad, y, 440, y+36)
		y += 42
	}
	l.demo = image.Rect(460, pad, 660, pad+36)
	l.octave = image.Rect(680, pad, windowW-pad, pad+36)
	l.scope = image.Rect(460, pad+48, windowW-pad, y-6)
	l.keyboard = image.Rect(pad, y+pad, windowW-pad, windowH-60)
	l.status = image.Rect(pad, windowH-48, windowW-pad, windowH-pad)
	return l
}

// sliderTrack is the draggable part of a slider row.
func sliderTrack(r image.Rectangle) image.Rectangle {
	return image.Rect(r.Min.X+130, r.Min.Y+r.Dy()/2-4, r.Max.X-16, r.Min.Y+r.Dy()/2+4)
}

// sliderValue maps a cursor x position on track to [0,1].
func sliderValue(mx int, track image.Rectangle) float64 {
	if track.Dx() <= 0 {
		return 0
	}
	return clamp(float64(mx-track.Min.X)/float64(track.Dx()), 0, 1)
}

func (g *game) drawSlider(screen *ebiten.Image, rect image.Rectangle, index int) {
	drawPanel(screen, rect)
	v := float64(g.player.GetParameter(uint8(index)))
	label := fmt.Sprintf("%-10s %.2f", g.player.Instrument().ParameterName(uint8(index)), v)
	text.Draw(screen, label, basicfont.Face7x13, rect.Min.X+8, rect.Min.Y+22, labelColor)

	track := sliderTrack(rect)
	ebitenutil.DrawRect(screen, float64(track.Min.X), float64(track.Min.Y), float64(track.Dx()), float64(track.Dy()), bevelDarker)
	fillW := int(float64(track.Dx()) * clamp(v, 0, 1))
	if fillW > 2 {
		ebitenutil.DrawRect(screen, float64(track.Min.X+1), float64(track.Min.Y+1), float64(fillW-1), float64(track.Dy()-2), sliderFillColor)
	}
	knobX := min(max(track.Min.X+fillW-5, track.Min.X-5), track.Max.X-5)
	knob := image.Rect(knobX, track.Min.Y-4, knobX+10, track.Max.Y+4)
	ebitenutil.DrawRect(screen, float64(knob.Min.X), float64(knob.Min.Y), float64(knob.Dx()), float64(knob.Dy()), panelColor)
	drawBorder(screen, knob)
}

func (g *game) drawScope(screen *ebiten.Image, rect image.Rectangle) {
	drawSunkenBorder(screen, rect)
	inner := rect.Inset(2)
	width, height := inner.Dx(), inner.Dy()
	if width <= 0 || height <= 0 {
		return
	}
	if g.scopeImg == nil || g.scopeW != width || g.scopeH != height {
		g.scopeW, g.scopeH = width, height
		g.scopeImg = ebiten.NewImage(width, height)
	}
	g.scopeImg.Fill(scopeBgColor)
	g.tap.Snapshot(g.snap)

	waveH := height / 2
	drawWaveform(g.scopeImg, g.snap, width, waveH)
	ebitenutil.DrawRect(g.scopeImg, 0, float64(waveH), float64(width), 1, color.RGBA{50, 54, 68, 180})
	g.drawSpectrum(g.scopeImg, width, height-waveH-1, waveH+1)

	if g.peakHz > 0 {
		text.Draw(g.scopeImg, fmt.Sprintf("peak %.1f Hz", g.peakHz), basicfont.Face7x13, 6, 14, scopeTextColor)
	}
	op := &ebiten.DrawImageOptions{}
	op.GeoM.Translate(float64(inner.Min.X), float64(inner.Min.Y))
	screen.DrawImage(g.scopeImg, op)
}

func drawWaveform(dst *ebiten.Image, samples []float32, width, height int) {
	if len(samples) < 2 || width < 2 || height < 4 {
		return
	}
	midY := height / 2
	gain := float64(midY - 2)
	trigger := findZeroCrossing(samples, len(samples)/4)
	visible := min(len(samples)-trigger, 800)
	prevX, prevY := 0, midY-int(float64(samples[trigger])*gain)
	for px := 1; px < width; px++ {
		si := min(trigger+px*visible/width, len(samples)-1)
		y := midY - int(float64(samples[si])*gain)
		ebitenutil.DrawLine(dst, float64(prevX), float64(prevY), float64(px), float64(y), waveColor)
		prevX, prevY = px, y
	}
}

// findZeroCrossing finds a rising zero-crossing in samples to stabilize the waveform display.
func findZeroCrossing(samples []float32, searchLen int) int {
	searchLen = min(searchLen, len(samples)-2)
	for i := 1; i < searchLen; i++ {
		if samples[i-1] <= 0 && samples[i] > 0 {
			return i
		}
	}
	return 0
}

func (g *game) drawSpectrum(dst *ebiten.Image, width, height, yOffset int) {
	if width < 4 || height < 4 {
		return
	}
	mag := g.analyzer.Spectrum(g.snap)
	g.peakHz = 0
	if bin, pos := g.analyzer.Peak(); bin > 0 && mag[bin] > 1e-3 {
		g.peakHz = g.analyzer.BinFrequency(pos, uiSampleRate)
	}
	// log-spaced bars from 20 Hz to 20 kHz
	const bars = 96
	barW := float64(width) / bars
	binHz := float64(uiSampleRate) / fftSize
	for b := 0; b < bars; b++ {
		lo := 20 * math.Pow(1000, float64(b)/bars)
		hi := 20 * math.Pow(1000, float64(b+1)/bars)
		loBin := max(1, int(lo/binHz))
		hiBin := min(len(mag)-1, max(loBin, int(hi/binHz)))
		peak := 0.0
		for k := loBin; k <= hiBin; k++ {
			peak = max(peak, mag[k])
		}
		db := 20 * math.Log10(peak+1e-9)
		v := clamp((db+72)/72, 0, 1)
		h := v * float64(height)
		r, gr, bl := spectrumColor(v)
		ebitenutil.DrawRect(dst, float64(b)*barW, float64(yOffset)+float64(height)-h, math.Max(1, barW-1), h, color.RGBA{r, gr, bl, 255})
	}
}

func spectrumColor(v float64) (uint8, uint8, uint8) {
	switch {
	case v < 0.5:
		return 0, uint8(80 + 300*v), 200
	case v < 0.8:
		return uint8(600 * (v - 0.5)), 230, uint8(200 - 500*(v-0.5))
	default:
		return 230, uint8(230 - 600*(v-0.8)), 40
	}
}

func (g *game) drawKeyboard(screen *ebiten.Image, rect image.Rectangle) {
	drawPanel(screen, rect)
	held := -1
	if g.mouseNote >= 0 {
		held = g.mouseNote - g.pitch(0)
	}
	for pass := 0; pass < 2; pass++ {
		for k := 0; k < keyCount; k++ {
			black := isBlack(k)
			if black != (pass == 1) {
				continue
			}
			r := keyRect(k, rect)
			c := whiteKeyColor
			if black {
				c = blackKeyColor
			}
			if k == held || g.keysHeld[k] {
				c = heldKeyColor
			}
			ebitenutil.DrawRect(screen, float64(r.Min.X), float64(r.Min.Y), float64(r.Dx()), float64(r.Dy()), c)
			if !black {
				drawSunkenBorder(screen, r)
			}
		}
	}
	label := fmt.Sprintf("keys: A W S E D F T G Y H U J K, Z/X octave (C%d)", g.octave)
	text.Draw(screen, label, basicfont.Face7x13, rect.Min.X+8, rect.Max.Y-8, labelColor)
}

func isBlack(k int) bool {
	switch k % 12 {
	case 1, 3, 6, 8, 10:
		return true
	}
	return false
}

// whiteIndex counts the white keys below k.
func whiteIndex(k int) int {
	n := 0
	for i := 0; i < k; i++ {
		if !isBlack(i) {
			n++
		}
	}
	return n
}

const whiteKeys = 8

func keyArea(rect image.Rectangle) image.Rectangle {
	return image.Rect(rect.Min.X+8, rect.Min.Y+8, rect.Max.X-8, rect.Max.Y-24)
}

func keyRect(k int, rect image.Rectangle) image.Rectangle {
	area := keyArea(rect)
	w := area.Dx() / whiteKeys
	x := area.Min.X + whiteIndex(k)*w
	if isBlack(k) {
		return image.Rect(x-w/3, area.Min.Y, x+w/3, area.Min.Y+area.Dy()*3/5)
	}
	return image.Rect(x, area.Min.Y, x+w, area.Max.Y)
}

// keyAt returns the key under the cursor, black keys first, or -1.
func keyAt(mx, my int, rect image.Rectangle) int {
	for k := 0; k < keyCount; k++ {
		if isBlack(k) && pointInRect(mx, my, keyRect(k, rect)) {
			return k
		}
	}
	for k := 0; k < keyCount; k++ {
		if !isBlack(k) && pointInRect(mx, my, keyRect(k, rect)) {
			return k
		}
	}
	return -1
}

func drawPanel(screen *ebiten.Image, rect image.Rectangle) {
	ebitenutil.DrawRect(screen, float64(rect.Min.X), float64(rect.Min.Y), float64(rect.Dx()), float64(rect.Dy()), panelColor)
	drawBorder(screen, rect)
}

func drawButton(screen *ebiten.Image, rect image.Rectangle, label string) {
	drawPanel(screen, rect)
	w := text.BoundString(basicfont.Face7x13, label).Dx()
	text.Draw(screen, label, basicfont.Face7x13, rect.Min.X+(rect.Dx()-w)/2, rect.Min.Y+rect.Dy()/2+5, labelColor)
}

// drawBorder draws a raised 3D bevel (highlight top/left, shadow bottom/right).
func drawBorder(screen *ebiten.Image, rect image.Rectangle) {
	x, y := float64(rect.Min.X), float64(rect.Min.Y)
	w, h := float64(rect.Dx()), float64(rect.Dy())
	ebitenutil.DrawRect(screen, x, y, w-1, 1, bevelLight)
	ebitenutil.DrawRect(screen, x, y+1, 1, h-2, bevelLight)
	ebitenutil.DrawRect(screen, x, y+h-1, w, 1, bevelDarker)
	ebitenutil.DrawRect(screen, x+w-1, y, 1, h, bevelDarker)
	ebitenutil.DrawRect(screen, x+1, y+h-2, w-3, 1, borderColor)
	ebitenutil.DrawRect(screen, x+w-2, y+1, 1, h-3, borderColor)
}

// drawSunkenBorder draws a sunken 3D bevel (shadow top/left, highlight bottom/right).
func drawSunkenBorder(screen *ebiten.Image, rect image.Rectangle) {
	x, y := float64(rect.Min.X), float64(rect.Min.Y)
	w, h := float64(rect.Dx()), float64(rect.Dy())
	ebitenutil.DrawRect(screen, x, y, w-1, 1, borderColor)
	ebitenutil.DrawRect(screen, x, y+1, 1, h-2, borderColor)
	ebitenutil.DrawRect(screen, x, y+h-1, w, 1, bevelLight)
	ebitenutil.DrawRect(screen, x+w-1, y, 1, h, bevelLight)
}

func clamp(v, minV, maxV float64) float64 {
	if v < minV {
		return minV
	}
	if v > maxV {
		return maxV
	}
	return v
}

func pointInRect(x, y int, rect image.Rectangle) bool {
	return x >= rect.Min.X && x < rect.Max.X && y >= rect.Min.Y && y < rect.Max.Y
}

func main() {
	var (
		backend = flag.String("backend", "ebiten", "audio backend: ebiten|oto|portaudio")
		debug   = flag.Bool("debug", false, "enable debug logging")
	)
	flag.Parse()
	level := slog.LevelInfo
	if *debug {
		level = slog.LevelDebug
	}
	logger := slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: level}))
	slog.SetDefault(logger)

	t := newTap()
	pl, err := savoy.NewPlayer(uiSampleRate,
		savoy.WithBackend(savoy.Backend(*backend)),
		savoy.WithSampleTap(t.Tap),
		savoy.WithPlayerLogger(logger),
	)
	if err != nil {
		log.Fatal(err)
	}
	g, err := newGame(pl, t)
	if err != nil {
		log.Fatal(err)
	}
	defer g.Close()
	if err := pl.Start(); err != nil {
		log.Fatal(err)
	}

	ebiten.SetWindowSize(windowW, windowH)
	ebiten.SetWindowTitle("savoy synth")
	if err := ebiten.RunGame(g); err != nil {
		log.Fatal(err)
	}
}
