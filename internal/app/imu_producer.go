package app

import (
	"encoding/json"
	"fmt"
	"log"
	"time"

	mqtt "github.com/eclipse/paho.mqtt.golang"

	"github.com/relabs-tech/accel_calibration/internal/config"
	"github.com/relabs-tech/accel_calibration/internal/imu"
	"github.com/relabs-tech/accel_calibration/internal/sensors"
)

// rawReader is the part of an IMU the producer needs.
type rawReader interface {
	ReadRaw() (imu.IMURaw, error)
}

// RunIMUProducer reads the SPI accelerometer and publishes raw counts on the raw IMU
// topic, so a recorder on another machine can capture over MQTT.
func RunIMUProducer() error {
	log.Println("starting accelerometer producer")

	cfg := config.Get()
	if cfg == nil {
		return fmt.Errorf("config not initialized")
	}

	dev, err := sensors.OpenMPU9250(cfg.IMUSPIDevice, cfg.IMUCSPin, cfg.IMUAccelRange)
	if err != nil {
		return err
	}

	// --- connect to MQTT ---
	opts := mqtt.NewClientOptions().
		AddBroker(cfg.MQTTBroker).
		SetClientID(cfg.MQTTClientIDProducer)

	client := mqtt.NewClient(opts)
	if token := client.Connect(); token.Wait() && token.Error() != nil {
		return fmt.Errorf("MQTT connect error: %w", token.Error())
	}
	defer client.Disconnect(250)

	log.Printf("connected to MQTT, publishing %s every %v", cfg.TopicIMURaw, cfg.RecordSampleInterval)

	publish := func(payload []byte) error {
		token := client.Publish(cfg.TopicIMURaw, 0, false, payload)
		token.Wait()
		return token.Error()
	}

	ticker := time.NewTicker(cfg.RecordSampleInterval)
	defer ticker.Stop()
	produce(dev, publish, ticker.C)
	return nil
}

// produce publishes one reading per tick until ticks is closed. Read and publish
// errors are logged and the tick skipped. It returns the number of published readings.
func produce(r rawReader, publish func([]byte) error, ticks <-chan time.Time) int {
	n := 0
	for t := range ticks {
		raw, err := r.ReadRaw()
		if err != nil {
			log.Printf("IMU read error: %v", err)
			continue
		}

		payload, err := json.Marshal(raw)
		if err != nil {
			log.Printf("json marshal error (imu raw): %v", err)
			continue
		}
		if err := publish(payload); err != nil {
			log.Printf("MQTT publish error (imu raw): %v", err)
			continue
		}
		n++

		if n%500 == 0 {
			log.Printf("%s tick: %d readings, last ax=%d ay=%d az=%d",
				t.Format(time.RFC3339), n, raw.Ax, raw.Ay, raw.Az)
		}
	}
	return n
}
