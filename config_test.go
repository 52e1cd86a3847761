package main

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func validConfig() *Config {
	return &Config{
		port:          8080,
		secret:        "s3cret",
		roomSize:      10,
		countdownTime: 10 * time.Second,
		questionTime:  15 * time.Second,
	}
}

func TestConfigValidate(t *testing.T) {
	assert.NoError(t, validConfig().validate())

	mismatchedTLS := validConfig()
	mismatchedTLS.tlsCert = "cert.pem"
	assert.Error(t, mismatchedTLS.validate())

	badPort := validConfig()
	badPort.port = 0
	assert.Error(t, badPort.validate())

	noSecret := validConfig()
	noSecret.secret = ""
	assert.Error(t, noSecret.validate())

	tinyRoom := validConfig()
	tinyRoom.roomSize = 0
	assert.Error(t, tinyRoom.validate())

	subSecondTimer := validConfig()
	subSecondTimer.questionTime = 100 * time.Millisecond
	assert.Error(t, subSecondTimer.validate())
}
