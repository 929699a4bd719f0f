package main

import (
	"bytes"
	"encoding/json"
	"flag"
	"fmt"
	"log"
	"math"
	"math/rand"
	"net/http"
	"net/url"
	"os"
	"os/signal"
	"strings"
	"time"

	"github.com/gorilla/websocket"

	"machinearena.ai/internal/protocol"
	"machinearena.ai/internal/sim/geom"
	"machinearena.ai/internal/sim/world"
)

// bot registers one machine, watches its owner's view stream and wanders,
// attacking any foreign machine it can see.
func main() {
	var (
		baseURL = flag.String("url", "http://localhost:8080", "server base url")
		owner   = flag.String("owner", "bot", "owner name")
		every   = flag.Duration("every", time.Second, "minimum time between actions")
	)
	flag.Parse()

	logger := log.New(os.Stdout, "[bot] ", log.LstdFlags|log.Lmicroseconds)
	cl := &client{base: strings.TrimRight(*baseURL, "/"), http: &http.Client{Timeout: 5 * time.Second}}

	var reg world.Result
	if err := cl.post("/v1/machines", world.MachineSpec{Owner: *owner}, &reg); err != nil {
		logger.Fatalf("register: %v", err)
	}
	me := reg.Machine.ID
	logger.Printf("registered machine=%s at %+v", me, reg.Machine.Pos)

	wsURL := "ws" + strings.TrimPrefix(cl.base, "http") + "/v1/view/ws?owner=" + url.QueryEscape(*owner)
	conn, _, err := websocket.DefaultDialer.Dial(wsURL, nil)
	if err != nil {
		logger.Fatalf("dial: %v", err)
	}
	defer conn.Close()

	stop := make(chan os.Signal, 1)
	signal.Notify(stop, os.Interrupt)

	r := rand.New(rand.NewSource(time.Now().UnixNano()))
	var last time.Time
	for {
		select {
		case <-stop:
			return
		default:
		}

		_, msg, err := conn.ReadMessage()
		if err != nil {
			return
		}
		base, err := protocol.DecodeBase(msg)
		if err != nil || base.Type != protocol.TypeView {
			continue
		}
		var vm struct {
			Seq  uint64     `json:"seq"`
			View world.View `json:"view"`
		}
		if err := json.Unmarshal(msg, &vm); err != nil {
			continue
		}
		if time.Since(last) < *every {
			continue
		}
		last = time.Now()
		if err := act(cl, logger, r, me, vm.View); err != nil {
			logger.Printf("seq=%d: %v", vm.Seq, err)
		}
	}
}

func act(cl *client, logger *log.Logger, r *rand.Rand, me string, v world.View) error {
	var self *world.MachineView
	for i := range v.Machines {
		if v.Machines[i].ID == me {
			self = &v.Machines[i]
		}
	}
	if self == nil {
		return fmt.Errorf("machine %s gone", me)
	}

	for _, m := range v.Machines {
		if m.Owner == v.Owner {
			continue
		}
		d := geom.Dir{X: m.Pos.X - self.Pos.X, Y: m.Pos.Y - self.Pos.Y}
		if err := cl.action(me, world.ActTurn, world.ActionParams{Direction: &d}); err != nil {
			return err
		}
		var res world.Result
		if err := cl.post("/v1/machines/"+me+"/action", world.Command{Action: world.ActAttack}, &res); err != nil {
			return err
		}
		logger.Printf("attack %s -> %s", m.ID, res.Attack.Hit.Type)
		return nil
	}

	angle := r.Float64() * 2 * math.Pi
	d := geom.Dir{X: math.Cos(angle), Y: math.Sin(angle)}
	dist := float64(1 + r.Intn(3))
	return cl.action(me, world.ActMoveBy, world.ActionParams{Direction: &d, Distance: &dist})
}

type client struct {
	base string
	http *http.Client
}

func (c *client) action(id, action string, p world.ActionParams) error {
	return c.post("/v1/machines/"+id+"/action", world.Command{Action: action, Params: p}, nil)
}

func (c *client) post(path string, body, out any) error {
	b, err := json.Marshal(body)
	if err != nil {
		return err
	}
	resp, err := c.http.Post(c.base+path, "application/json", bytes.NewReader(b))
	if err != nil {
		return err
	}
	defer resp.Body.Close()
	if resp.StatusCode/100 != 2 {
		var e protocol.ErrorBody
		_ = json.NewDecoder(resp.Body).Decode(&e)
		return fmt.Errorf("%s: %s %s", path, e.Code, e.Message)
	}
	if out == nil {
		return nil
	}
	return json.NewDecoder(resp.Body).Decode(out)
}
