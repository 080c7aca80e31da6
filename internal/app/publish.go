// Copyright (c) 2026 Daniel Alarcon Rubio / Relabs Tech
// SPDX-License-Identifier: MIT
// See LICENSE file for full license text

package app

import (
	"encoding/json"
	"fmt"
	"log"
	"time"

	mqtt "github.com/eclipse/paho.mqtt.golang"

	"github.com/relabs-tech/accel_calibration/internal/calibration"
)

// CalibrationMessage is the retained payload published on the calibration topic so
// IMU consumers can pick up the latest correction.
type CalibrationMessage struct {
	ID        string             `json:"id"`
	CreatedAt time.Time          `json:"created_at"`
	Input     string             `json:"input"`
	Report    calibration.Report `json:"report"`
}

// ReportPublisher sends finished calibrations somewhere.
type ReportPublisher interface {
	Publish(msg CalibrationMessage) error
}

// MQTTPublisher publishes calibration messages as retained JSON.
type MQTTPublisher struct {
	client mqtt.Client
	topic  string
}

// NewMQTTPublisher connects to broker.
func NewMQTTPublisher(broker, clientID, topic string) (*MQTTPublisher, error) {
	opts := mqtt.NewClientOptions().
		AddBroker(broker).
		SetClientID(clientID)

	client := mqtt.NewClient(opts)
	if token := client.Connect(); token.Wait() && token.Error() != nil {
		return nil, fmt.Errorf("connect to MQTT broker %s: %w", broker, token.Error())
	}
	log.Printf("publish: connected to MQTT broker at %s", broker)
	return &MQTTPublisher{client: client, topic: topic}, nil
}

func (p *MQTTPublisher) Publish(msg CalibrationMessage) error {
	payload, err := json.Marshal(msg)
	if err != nil {
		return fmt.Errorf("marshal calibration message: %w", err)
	}

	token := p.client.Publish(p.topic, 0, true, payload)
	token.Wait()
	if token.Error() != nil {
		return fmt.Errorf("publish %s: %w", p.topic, token.Error())
	}
	log.Printf("publish: calibration %s sent to %s (%d bytes)", msg.ID, p.topic, len(payload))
	return nil
}

func (p *MQTTPublisher) Close() {
	p.client.Disconnect(250)
}
