package main

import (
	"bufio"
	"bytes"
	"crypto/rand"
	"flag"
	"fmt"
	"io"
	"net"
	"os"
	"time"

	"github.com/sirupsen/logrus"
)

// tcpclient talks to `tuntcp serve -handler echo` through the host's own
// tcp stack. With -size it sends one bulk payload and checks the echo,
// otherwise it echoes stdin line by line.
func main() {
	addr := flag.String("addr", "10.0.0.1:80", "server address")
	size := flag.Int("size", 0, "send size random bytes and verify the echo")
	flag.Parse()

	log := logrus.WithField("addr", *addr)
	conn, err := net.DialTimeout("tcp", *addr, 5*time.Second)
	if err != nil {
		log.Fatal(err)
	}
	defer conn.Close()

	if *size > 0 {
		if err := bulk(conn, *size); err != nil {
			log.Fatal(err)
		}
		log.WithField("size", *size).Info("echo verified")
		return
	}
	if err := interactive(conn); err != nil {
		log.Fatal(err)
	}
}

func interactive(conn net.Conn) error {
	stdin := bufio.NewScanner(os.Stdin)
	response := make([]byte, 4*1024)
	for {
		fmt.Print("> ")
		if !stdin.Scan() {
			return stdin.Err()
		}
		if _, err := conn.Write(stdin.Bytes()); err != nil {
			return err
		}
		n, err := conn.Read(response)
		if err != nil {
			return err
		}
		fmt.Printf("server> %s\n", response[:n])
	}
}

func bulk(conn net.Conn, size int) error {
	data := make([]byte, size)
	if _, err := rand.Read(data); err != nil {
		return err
	}
	errCh := make(chan error, 1)
	go func() {
		_, err := conn.Write(data)
		errCh <- err
	}()
	conn.SetReadDeadline(time.Now().Add(30 * time.Second))
	got := make([]byte, size)
	if _, err := io.ReadFull(conn, got); err != nil {
		return fmt.Errorf("read echo: %w", err)
	}
	if err := <-errCh; err != nil {
		return fmt.Errorf("write: %w", err)
	}
	if !bytes.Equal(data, got) {
		return fmt.Errorf("echo mismatch")
	}
	return nil
}
