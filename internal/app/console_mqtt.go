package app

import (
	"encoding/json"
	"fmt"
	"log"
	"os"
	"os/signal"
	"syscall"

	mqtt "github.com/eclipse/paho.mqtt.golang"

	"github.com/relabs-tech/accel_calibration/internal/config"
)

// RunConsoleMQTT prints every calibration published on the calibration topic.
func RunConsoleMQTT() error {
	cfg := config.Get()
	if cfg == nil {
		return fmt.Errorf("config not initialized")
	}

	opts := mqtt.NewClientOptions().
		AddBroker(cfg.MQTTBroker).
		SetClientID(cfg.MQTTClientIDMonitor)

	client := mqtt.NewClient(opts)
	if token := client.Connect(); token.Wait() && token.Error() != nil {
		return token.Error()
	}
	log.Printf("console: connected to MQTT broker at %s", cfg.MQTTBroker)

	token := client.Subscribe(cfg.TopicCalibration, 0, func(_ mqtt.Client, msg mqtt.Message) {
		line, err := formatCalibrationMessage(msg.Payload())
		if err != nil {
			log.Printf("console: calibration unmarshal error: %v", err)
			return
		}
		fmt.Println(line)
	})
	token.Wait()
	if token.Error() != nil {
		return token.Error()
	}
	log.Printf("console: subscribed to %s", cfg.TopicCalibration)

	// Wait for Ctrl+C
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, os.Interrupt, syscall.SIGTERM)
	<-sigCh

	log.Println("console: shutting down")
	client.Disconnect(250)
	return nil
}

func formatCalibrationMessage(payload []byte) (string, error) {
	var m CalibrationMessage
	if err := json.Unmarshal(payload, &m); err != nil {
		return "", err
	}
	d := m.Report.Diagnostics
	b := m.Report.Coeffs.B
	return fmt.Sprintf(
		"[CAL] %s id=%s input=%s g=%.5f b=(%.4f, %.4f, %.4f) |mag-g| raw=%.4f corr=%.4f rows=%d",
		m.CreatedAt.Format("2006-01-02 15:04:05"), m.ID, m.Input, m.Report.Meta.Gravity,
		b.X, b.Y, b.Z, d.MaxAbsMagRawSteady, d.MaxAbsMagCorrSteady, d.ParsedLines,
	), nil
}
