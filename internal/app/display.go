package app

import (
	"encoding/json"
	"fmt"
	"image"
	"log"
	"sync"
	"time"

	mqtt "github.com/eclipse/paho.mqtt.golang"
	"golang.org/x/image/font"
	"golang.org/x/image/font/basicfont"
	"golang.org/x/image/math/fixed"
	"periph.io/x/conn/v3/i2c/i2creg"
	"periph.io/x/devices/v3/ssd1306"
	"periph.io/x/devices/v3/ssd1306/image1bit"
	"periph.io/x/host/v3"

	"github.com/relabs-tech/accel_calibration/internal/config"
)

// DisplayData holds the latest calibration for display
type DisplayData struct {
	mu sync.RWMutex

	latest   CalibrationMessage
	haveData bool
}

// RunDisplay shows the latest published calibration on an SSD1306 OLED, so the rig
// operator sees the result without a terminal.
func RunDisplay() error {
	cfg := config.Get()
	if cfg == nil {
		return fmt.Errorf("config not initialized")
	}

	// Initialize periph
	if _, err := host.Init(); err != nil {
		return fmt.Errorf("failed to initialize periph: %w", err)
	}

	// Open I2C bus
	bus, err := i2creg.Open("")
	if err != nil {
		return fmt.Errorf("failed to open I2C bus: %w", err)
	}
	defer bus.Close()

	// The driver talks to the default 0x3C address.
	dev, err := ssd1306.NewI2C(bus, &ssd1306.DefaultOpts)
	if err != nil {
		return fmt.Errorf("failed to initialize display: %w", err)
	}
	log.Println("display: initialized")

	if err := dev.Draw(dev.Bounds(), renderLines("Accel calib", "Waiting for", "results..."), image.Point{}); err != nil {
		log.Printf("display: error showing splash: %v", err)
	}

	data := &DisplayData{}

	// Connect to MQTT
	opts := mqtt.NewClientOptions().
		AddBroker(cfg.MQTTBroker).
		SetClientID(cfg.MQTTClientIDDisplay)

	client := mqtt.NewClient(opts)
	if token := client.Connect(); token.Wait() && token.Error() != nil {
		return token.Error()
	}
	defer client.Disconnect(250)
	log.Printf("display: connected to MQTT broker at %s", cfg.MQTTBroker)

	token := client.Subscribe(cfg.TopicCalibration, 0, func(_ mqtt.Client, msg mqtt.Message) {
		var m CalibrationMessage
		if err := json.Unmarshal(msg.Payload(), &m); err != nil {
			log.Printf("display: calibration unmarshal error: %v", err)
			return
		}
		data.mu.Lock()
		data.latest = m
		data.haveData = true
		data.mu.Unlock()
	})
	token.Wait()
	if token.Error() != nil {
		return fmt.Errorf("failed to subscribe to %s: %w", cfg.TopicCalibration, token.Error())
	}

	ticker := time.NewTicker(cfg.DisplayUpdateInterval)
	defer ticker.Stop()

	log.Println("display: starting update loop")

	var shown string
	for range ticker.C {
		data.mu.RLock()
		latest, have := data.latest, data.haveData
		data.mu.RUnlock()

		if !have || latest.ID == shown {
			continue
		}
		if err := dev.Draw(dev.Bounds(), renderCalibration(&latest), image.Point{}); err != nil {
			log.Printf("display: error updating display: %v", err)
			continue
		}
		shown = latest.ID
	}

	return nil
}

// renderCalibration draws the bias and the steady magnitude error before and after
// correction on a 128x64 frame.
func renderCalibration(m *CalibrationMessage) *image1bit.VerticalLSB {
	b := m.Report.Coeffs.B
	d := m.Report.Diagnostics
	return renderLines(
		"Accel "+m.CreatedAt.Local().Format("15:04"),
		fmt.Sprintf("b%+.2f%+.2f%+.2f", b.X, b.Y, b.Z),
		fmt.Sprintf("raw  %.4f", d.MaxAbsMagRawSteady),
		fmt.Sprintf("corr %.4f", d.MaxAbsMagCorrSteady),
	)
}

func renderLines(lines ...string) *image1bit.VerticalLSB {
	img := image1bit.NewVerticalLSB(image.Rect(0, 0, 128, 64))

	drawer := &font.Drawer{
		Dst:  img,
		Src:  &image.Uniform{image1bit.On},
		Face: basicfont.Face7x13,
	}

	for i, line := range lines {
		if i == 4 {
			break
		}
		drawer.Dot = fixed.P(0, 13*(i+1))
		drawer.DrawBytes([]byte(line))
	}
	return img
}
