package gpu

import (
	"bytes"
	"log/slog"
	"strings"
	"testing"

	"github.com/gogpu/life"
)

func TestSloggerFollowsLifeLogger(t *testing.T) {
	orig := life.Logger()
	t.Cleanup(func() {
		life.SetLogger(orig)
		SetLogger(nil)
	})

	var root, own bytes.Buffer
	life.SetLogger(slog.New(slog.NewTextHandler(&root, nil)))
	slogger().Info("ready")
	if !strings.Contains(root.String(), "component=gpu") {
		t.Errorf("root output %q missing component=gpu", root.String())
	}

	SetLogger(slog.New(slog.NewTextHandler(&own, nil)))
	slogger().Info("override")
	if !strings.Contains(own.String(), "override") || strings.Contains(root.String(), "override") {
		t.Errorf("override not routed: root %q, own %q", root.String(), own.String())
	}

	SetLogger(nil)
	slogger().Info("back")
	if !strings.Contains(root.String(), "back") {
		t.Errorf("SetLogger(nil) did not restore life.Logger: %q", root.String())
	}
}
