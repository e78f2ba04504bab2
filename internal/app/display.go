// Copyright (c) 2026 Daniel Alarcon Rubio / Relabs Tech
// SPDX-License-Identifier: MIT
// See LICENSE file for full license text

package app

import (
	"encoding/json"
	"fmt"
	"image"
	"net/http"
	"strings"
	"time"

	log "github.com/sirupsen/logrus"
	"golang.org/x/image/font"
	"golang.org/x/image/font/basicfont"
	"golang.org/x/image/math/fixed"
	"periph.io/x/conn/v3/i2c"
	"periph.io/x/conn/v3/i2c/i2creg"
	"periph.io/x/devices/v3/ssd1306"
	"periph.io/x/devices/v3/ssd1306/image1bit"
	"periph.io/x/host/v3"

	"github.com/relabs-tech/inertial_tracker/internal/config"
)

// RunDisplay polls the tracker and shows the pose on an SSD1306 OLED.
func RunDisplay() error {
	cfg := config.Get()

	// Initialize periph
	if _, err := host.Init(); err != nil {
		return fmt.Errorf("failed to initialize periph: %w", err)
	}

	bus, err := i2creg.Open(cfg.DisplayI2CBus)
	if err != nil {
		return fmt.Errorf("failed to open I2C bus: %w", err)
	}
	defer bus.Close()

	dev, err := openDisplay(bus)
	if err != nil {
		return fmt.Errorf("failed to initialize display: %w", err)
	}
	log.Printf("display: initialized on %s", bus)

	if err := dev.Draw(dev.Bounds(), renderSplash(), image.Point{}); err != nil {
		log.Printf("display: error showing splash: %v", err)
	}

	url := trackerURL(cfg.TrackerAddr) + "/api/pose"
	client := &http.Client{Timeout: 2 * time.Second}

	ticker := time.NewTicker(time.Duration(cfg.DisplayUpdateInterval) * time.Millisecond)
	defer ticker.Stop()

	log.Printf("display: polling %s", url)

	for range ticker.C {
		p, ok, err := fetchPose(client, url)
		if err != nil {
			log.Debugf("display: %v", err)
		}
		if err := dev.Draw(dev.Bounds(), renderPose(p, ok), image.Point{}); err != nil {
			log.Printf("display: error updating display: %v", err)
		}
	}

	return nil
}

// openDisplay initialises a 128x64 panel. The driver always talks to the
// panel at 0x3C.
func openDisplay(bus i2c.Bus) (*ssd1306.Dev, error) {
	return ssd1306.NewI2C(bus, &ssd1306.DefaultOpts)
}

// trackerURL turns a listen address like ":8081" into a base URL.
func trackerURL(addr string) string {
	if strings.HasPrefix(addr, "http://") || strings.HasPrefix(addr, "https://") {
		return strings.TrimSuffix(addr, "/")
	}
	if strings.HasPrefix(addr, ":") {
		addr = "localhost" + addr
	}
	return "http://" + addr
}

// fetchPose returns ok=false while the tracker has no pose yet.
func fetchPose(client *http.Client, url string) (PoseView, bool, error) {
	resp, err := client.Get(url)
	if err != nil {
		return PoseView{}, false, fmt.Errorf("fetch pose: %w", err)
	}
	defer resp.Body.Close()

	switch resp.StatusCode {
	case http.StatusOK:
	case http.StatusServiceUnavailable:
		return PoseView{}, false, nil
	default:
		return PoseView{}, false, fmt.Errorf("fetch pose: unexpected status %s", resp.Status)
	}

	var p PoseView
	if err := json.NewDecoder(resp.Body).Decode(&p); err != nil {
		return PoseView{}, false, fmt.Errorf("decode pose: %w", err)
	}
	return p, true, nil
}

func newCanvas() (*image1bit.VerticalLSB, *font.Drawer) {
	img := image1bit.NewVerticalLSB(image.Rect(0, 0, 128, 64))
	drawer := &font.Drawer{
		Dst:  img,
		Src:  &image.Uniform{image1bit.On},
		Face: basicfont.Face7x13,
	}
	return img, drawer
}

func renderPose(p PoseView, haveData bool) *image1bit.VerticalLSB {
	img, drawer := newCanvas()

	if !haveData {
		drawer.Dot = fixed.P(0, 26)
		drawer.DrawString("Pose")
		drawer.Dot = fixed.P(0, 39)
		drawer.DrawString("Waiting...")
		return img
	}

	lines := []string{
		fmt.Sprintf("X%6.2f Y%6.2f", p.Position.X, p.Position.Y),
		fmt.Sprintf("Z%6.2f", p.Position.Z),
		fmt.Sprintf("R%6.1f P%6.1f", p.Roll, p.Pitch),
		fmt.Sprintf("Y%6.1f", p.Yaw),
	}
	for i, line := range lines {
		drawer.Dot = fixed.P(0, 13*(i+1))
		drawer.DrawString(line)
	}
	return img
}

func renderSplash() *image1bit.VerticalLSB {
	img, drawer := newCanvas()

	drawer.Dot = fixed.P(10, 26)
	drawer.DrawString("Inertial Pi")

	drawer.Dot = fixed.P(20, 43)
	drawer.DrawString("Tracker")

	return img
}
