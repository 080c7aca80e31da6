// Copyright (c) 2026 Daniel Alarcon Rubio / Relabs Tech
// SPDX-License-Identifier: MIT
// See LICENSE file for full license text

package sensors

import (
	"encoding/json"
	"errors"
	"fmt"
	"log"
	"time"

	mqtt "github.com/eclipse/paho.mqtt.golang"

	"github.com/relabs-tech/accel_calibration/internal/imu"
)

// ErrSourceTimeout is returned when no message arrives within the read timeout.
var ErrSourceTimeout = errors.New("no IMU sample received in time")

// mqttSource receives raw IMU JSON messages from an inertial producer. Messages are
// handed from the paho callback goroutine to NextSample through a buffered channel.
type mqttSource struct {
	client     mqtt.Client
	topic      string
	accelRange byte
	timeout    time.Duration

	samples chan imu.Sample
	start   time.Time
	dropped int
}

// NewMQTTSource connects to broker and subscribes to topic.
func NewMQTTSource(broker, clientID, topic string, accelRange byte, timeout time.Duration) (imu.SampleSource, error) {
	opts := mqtt.NewClientOptions().
		AddBroker(broker).
		SetClientID(clientID)

	client := mqtt.NewClient(opts)
	if token := client.Connect(); token.Wait() && token.Error() != nil {
		return nil, fmt.Errorf("connect to MQTT broker %s: %w", broker, token.Error())
	}
	log.Printf("mqtt: connected to broker at %s", broker)

	s := newMQTTSource(accelRange, timeout)
	s.client = client
	s.topic = topic

	token := client.Subscribe(topic, 0, func(_ mqtt.Client, msg mqtt.Message) {
		s.handle(msg.Payload())
	})
	if token.Wait() && token.Error() != nil {
		client.Disconnect(250)
		return nil, fmt.Errorf("subscribe %s: %w", topic, token.Error())
	}
	log.Printf("mqtt: subscribed to %s", topic)
	return s, nil
}

func newMQTTSource(accelRange byte, timeout time.Duration) *mqttSource {
	return &mqttSource{
		accelRange: accelRange,
		timeout:    timeout,
		samples:    make(chan imu.Sample, 1024),
	}
}

// handle runs on the paho callback goroutine.
func (s *mqttSource) handle(payload []byte) {
	var raw imu.IMURaw
	if err := json.Unmarshal(payload, &raw); err != nil {
		log.Printf("mqtt: invalid IMU payload: %v", err)
		return
	}

	now := time.Now()
	if s.start.IsZero() {
		s.start = now
	}
	select {
	case s.samples <- raw.ToSample(msSince(s.start, now), s.accelRange):
	default:
		s.dropped++
		if s.dropped%100 == 1 {
			log.Printf("mqtt: sample buffer full, %d samples dropped", s.dropped)
		}
	}
}

func (s *mqttSource) NextSample() (imu.Sample, error) {
	select {
	case smp := <-s.samples:
		return smp, nil
	case <-time.After(s.timeout):
		return imu.Sample{}, fmt.Errorf("%s: %w", s.topic, ErrSourceTimeout)
	}
}

// Flush discards samples that queued up while nobody was reading, e.g. while the rig
// was being moved to the next position.
func (s *mqttSource) Flush() int {
	n := 0
	for {
		select {
		case <-s.samples:
			n++
		default:
			return n
		}
	}
}

func (s *mqttSource) Close() error {
	if s.client == nil {
		return nil
	}
	if token := s.client.Unsubscribe(s.topic); token.Wait() && token.Error() != nil {
		log.Printf("mqtt: unsubscribe %s: %v", s.topic, token.Error())
	}
	s.client.Disconnect(250)
	return nil
}
