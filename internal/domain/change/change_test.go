package change

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestEvent_Subject(t *testing.T) {
	ev := New(EntityTicket, KindInsert, "t-1", time.Now())
	assert.Equal(t, "eventure.ticket.insert", ev.Subject("eventure"))
}
