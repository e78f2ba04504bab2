// Copyright (c) 2026 Daniel Alarcon Rubio / Relabs Tech
// SPDX-License-Identifier: MIT
// See LICENSE file for full license text

package sensors

import (
	"fmt"
	"io"
	"time"

	log "github.com/sirupsen/logrus"
	"periph.io/x/conn/v3/gpio/gpioreg"
	"periph.io/x/devices/v3/mpu9250"
	"periph.io/x/host/v3"

	"github.com/relabs-tech/inertial_tracker/internal/imu"
	"github.com/relabs-tech/inertial_tracker/internal/record"
)

type imuSource struct {
	spiDev string
	imu    *mpu9250.MPU9250
}

// NewIMUSource initializes an MPU9250 over SPI, runs the self-test and the
// bias calibration, and returns it ready for polling.
func NewIMUSource(spiDev, csPin string) (imu.IMURawSource, error) {
	if _, err := host.Init(); err != nil {
		return nil, fmt.Errorf("IMU: periph host init: %w", err)
	}

	cs := gpioreg.ByName(csPin)
	if cs == nil {
		return nil, fmt.Errorf("IMU: CS pin %q not found", csPin)
	}

	tr, err := mpu9250.NewSpiTransport(spiDev, cs)
	if err != nil {
		return nil, fmt.Errorf("IMU: SPI transport (%s): %w", spiDev, err)
	}

	dev, err := mpu9250.New(*tr)
	if err != nil {
		return nil, fmt.Errorf("IMU: device creation: %w", err)
	}

	if err := dev.Init(); err != nil {
		return nil, fmt.Errorf("IMU: initialization: %w", err)
	}

	if _, err := dev.SelfTest(); err != nil {
		log.Warnf("IMU %s: self-test failed: %v", spiDev, err)
	} else {
		log.Printf("IMU %s: self-test passed", spiDev)
	}

	// the device must be at rest while this runs
	if err := dev.Calibrate(); err != nil {
		log.Warnf("IMU %s: calibration failed: %v", spiDev, err)
	} else {
		log.Printf("IMU %s: calibration complete", spiDev)
	}

	return &imuSource{spiDev: spiDev, imu: dev}, nil
}

// NextRaw reads accelerometer and gyroscope counts.
func (s *imuSource) NextRaw() (imu.IMURaw, error) {
	ax, err := s.imu.GetAccelerationX()
	if err != nil {
		return imu.IMURaw{}, fmt.Errorf("IMU accel X: %w", err)
	}
	ay, err := s.imu.GetAccelerationY()
	if err != nil {
		return imu.IMURaw{}, fmt.Errorf("IMU accel Y: %w", err)
	}
	az, err := s.imu.GetAccelerationZ()
	if err != nil {
		return imu.IMURaw{}, fmt.Errorf("IMU accel Z: %w", err)
	}

	gx, err := s.imu.GetRotationX()
	if err != nil {
		return imu.IMURaw{}, fmt.Errorf("IMU gyro X: %w", err)
	}
	gy, err := s.imu.GetRotationY()
	if err != nil {
		return imu.IMURaw{}, fmt.Errorf("IMU gyro Y: %w", err)
	}
	gz, err := s.imu.GetRotationZ()
	if err != nil {
		return imu.IMURaw{}, fmt.Errorf("IMU gyro Z: %w", err)
	}

	return imu.IMURaw{Ax: ax, Ay: ay, Az: az, Gx: gx, Gy: gy, Gz: gz}, nil
}

// PolledDevice turns a polled IMU into a newline-delimited record stream.
type PolledDevice struct {
	*pipeDevice
}

// NewPolledDevice polls src every interval. Read errors are logged and the
// sample is skipped.
func NewPolledDevice(src imu.IMURawSource, scale imu.Scale, interval time.Duration) *PolledDevice {
	tick := func(w io.Writer, _ time.Time) error {
		raw, err := src.NextRaw()
		if err != nil {
			log.Printf("sensors: error reading IMU: %v", err)
			return nil
		}
		b, err := record.EncodeSample(raw.Sample(scale))
		if err != nil {
			log.Printf("sensors: encode sample: %v", err)
			return nil
		}
		_, err = w.Write(append(b, '\n'))
		return err
	}
	return &PolledDevice{pipeDevice: startPipeDevice(interval, tick)}
}
