package logging

import (
	"bytes"
	"encoding/json"
	"path/filepath"
	"testing"

	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/require"
)

func TestNew_JSON(t *testing.T) {
	logger, closer, err := New(Config{Level: "debug", Format: "json"})
	require.NoError(t, err)
	defer closer.Close()
	require.Equal(t, logrus.DebugLevel, logger.GetLevel())

	var buf bytes.Buffer
	logger.SetOutput(&buf)
	Component(logger, "fund").WithField("project", 7).Info("paid")

	var line map[string]interface{}
	require.NoError(t, json.Unmarshal(buf.Bytes(), &line))
	require.Equal(t, "fund", line["component"])
	require.Equal(t, float64(7), line["project"])
	require.Equal(t, "paid", line["msg"])
}

func TestNew_File(t *testing.T) {
	path := filepath.Join(t.TempDir(), "ledger.log")
	logger, closer, err := New(Config{File: path})
	require.NoError(t, err)
	logger.Info("hello")
	require.NoError(t, closer.Close())
	require.FileExists(t, path)
}

func TestNew_Invalid(t *testing.T) {
	_, _, err := New(Config{Level: "loud"})
	require.Error(t, err)
	_, _, err = New(Config{Format: "xml"})
	require.Error(t, err)
}
