package main

import (
	"testing"

	"github.com/sirupsen/logrus"
)

func TestSetupLogger(t *testing.T) {
	log, err := setupLogger("debug", "json")
	if err != nil {
		t.Fatalf("setupLogger: %v", err)
	}
	if log.GetLevel() != logrus.DebugLevel {
		t.Errorf("level = %v", log.GetLevel())
	}
	if _, ok := log.Formatter.(*logrus.JSONFormatter); !ok {
		t.Errorf("formatter = %T, want JSON", log.Formatter)
	}

	log, err = setupLogger("info", "")
	if err != nil {
		t.Fatalf("setupLogger: %v", err)
	}
	if _, ok := log.Formatter.(*logrus.TextFormatter); !ok {
		t.Errorf("formatter = %T, want text", log.Formatter)
	}

	if _, err := setupLogger("loud", "text"); err == nil {
		t.Error("expected an error for an unknown level")
	}
	if _, err := setupLogger("info", "xml"); err == nil {
		t.Error("expected an error for an unknown format")
	}
}
