package irc

import (
	"bytes"
	"strings"
)

// MaxMessageLength is a conservative payload size for one PRIVMSG/NOTICE line.
const MaxMessageLength = 400

// Chunker breaks text into lines that fit the IRC line limit.
// It buffers content and emits complete lines or chunks when the buffer
// exceeds the maximum chunk size.
type Chunker struct {
	emit         func(string)
	buffer       *bytes.Buffer
	maxChunkSize int
}

// NewChunker creates a chunker that hands every finished line to emit.
func NewChunker(emit func(string), maxChunkSize int) *Chunker {
	if maxChunkSize <= 0 {
		maxChunkSize = MaxMessageLength
	}
	return &Chunker{
		emit:         emit,
		buffer:       &bytes.Buffer{},
		maxChunkSize: maxChunkSize,
	}
}

// Write adds content to the buffer and emits complete lines immediately.
// While the buffer is too large, chunks are split off at word boundaries.
func (c *Chunker) Write(content string) {
	c.buffer.WriteString(content)

	// Emit complete lines immediately
	for {
		line, err := c.buffer.ReadString('\n')
		if err != nil {
			// No more complete lines, put back what we read
			if line != "" {
				c.buffer.WriteString(line)
			}
			break
		}
		c.emitLine(strings.TrimSuffix(line, "\n"))
	}

	for c.buffer.Len() > c.maxChunkSize {
		chunk := c.extractBestSplitChunk()
		if chunk == "" {
			break
		}
		c.emit(chunk)
	}
}

func (c *Chunker) emitLine(line string) {
	line = strings.TrimSuffix(line, "\r")
	for len(line) > c.maxChunkSize {
		end := c.maxChunkSize
		if idx := strings.LastIndexByte(line[:end+1], ' '); idx > 0 {
			c.emit(line[:idx])
			line = line[idx+1:]
			continue
		}
		c.emit(line[:end])
		line = line[end:]
	}
	if line != "" {
		c.emit(line)
	}
}

func (c *Chunker) extractBestSplitChunk() string {
	if c.buffer.Len() == 0 {
		return ""
	}

	data := c.buffer.Bytes()
	end := min(c.maxChunkSize, len(data))

	// Try to find a space within the allowed range to break cleanly; a space
	// right after the limit still counts
	if idx := bytes.LastIndexByte(data[:min(end+1, len(data))], ' '); idx > 0 {
		chunk := string(data[:idx])
		c.buffer.Next(idx + 1) // Skip the space itself
		return chunk
	}

	// If no space is found, hard break at maxChunkSize
	chunk := string(data[:end])
	c.buffer.Next(end)
	return chunk
}

// Flush emits any remaining buffer content.
func (c *Chunker) Flush() {
	if c.buffer.Len() > 0 {
		c.emitLine(c.buffer.String())
		c.buffer.Reset()
	}
}

// Split breaks text into lines of at most maxLen bytes.
func Split(text string, maxLen int) []string {
	var lines []string
	c := NewChunker(func(line string) { lines = append(lines, line) }, maxLen)
	c.Write(text)
	c.Flush()
	return lines
}
