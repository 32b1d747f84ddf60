package notify

import (
	"bytes"
	"context"
	"errors"
	"strings"
	"testing"

	"github.com/rs/zerolog"

	pkgerrors "github.com/angelmondragon/storefront/pkg/errors"
	"github.com/angelmondragon/storefront/pkg/logger"
)

func TestRecorderKeepsOrderAndLast(t *testing.T) {
	ctx := context.Background()
	rec := &Recorder{}

	if _, ok := rec.Last(); ok {
		t.Fatal("empty recorder has no last notification")
	}
	Success(ctx, rec, "Camiseta adicionado ao carrinho")
	Failure(ctx, rec, pkgerrors.New(pkgerrors.CodeEmptySelection, ""))

	all := rec.All()
	if len(all) != 2 || all[0].Kind != KindSuccess {
		t.Fatalf("unexpected notifications %+v", all)
	}
	last, _ := rec.Last()
	if last.Kind != KindError || last.Message != pkgerrors.MetadataFor(pkgerrors.CodeEmptySelection).PublicMessage {
		t.Fatalf("unexpected last notification %+v", last)
	}

	rec.Reset()
	if len(rec.All()) != 0 {
		t.Fatal("reset should drop notifications")
	}
}

func TestFailureHidesUntypedErrors(t *testing.T) {
	rec := &Recorder{}
	Failure(context.Background(), rec, errors.New("dial tcp 10.0.0.1: refused"))
	last, _ := rec.Last()
	if strings.Contains(last.Message, "10.0.0.1") {
		t.Fatalf("internal detail leaked: %q", last.Message)
	}
	Failure(context.Background(), rec, nil)
	if len(rec.All()) != 1 {
		t.Fatal("nil errors should not notify")
	}
}

func TestMultiFansOutToLogger(t *testing.T) {
	var buf bytes.Buffer
	logg := logger.New(logger.Options{ServiceName: "test", Level: zerolog.DebugLevel, Output: &buf})
	rec := &Recorder{}
	multi := Multi{rec, LogNotifier{Logger: logg}, nil}

	multi.Notify(context.Background(), Notification{Kind: KindError, Message: "log in to continue"})

	if len(rec.All()) != 1 {
		t.Fatal("recorder should receive the notification")
	}
	if !strings.Contains(buf.String(), `"notification":"log in to continue"`) {
		t.Fatalf("expected log entry, got %s", buf.String())
	}
}
