package domain

// FileAnalysis — диагностика по одному файлу задачи.
type FileAnalysis struct {
	ReadFile          int      `json:"readFile"`
	ReadData          int      `json:"readData"`
	WrittenData       int      `json:"writtenData"`
	MismatchingReads  []string `json:"mismatchingReads"`
	MismatchingWrites []string `json:"mismatchingWrites"`
}

// TaskAnalysis — диагностика задачи, вычисленная из журнала событий.
type TaskAnalysis struct {
	OriginalURLCount     int                      `json:"originalURLCount"`
	FilesProcessedOnTask int                      `json:"filesProcessedOnTask"`
	ReadsOnTask          int                      `json:"readsOnTask"`
	WritesOnTask         int                      `json:"writesOnTask"`
	ReadFileCount        int                      `json:"readFileCount"`
	ReadDataCount        int                      `json:"readDataCount"`
	WrittenDataCount     int                      `json:"writtenDataCount"`
	FileDataCount        int                      `json:"fileDataCount"`
	FileData             map[string]*FileAnalysis `json:"fileData"`
}

// Analyze строит диагностику задачи по её журналу.
//
// MismatchingReads — хеши, прочитанные, но не записанные;
// MismatchingWrites — записанные, но не прочитанные.
func Analyze(t *Task) TaskAnalysis {
	a := TaskAnalysis{
		OriginalURLCount:     len(t.Message.FileURL),
		FilesProcessedOnTask: t.FilesProcessed,
		ReadsOnTask:          t.Reads,
		WritesOnTask:         t.Writes,
		FileData:             make(map[string]*FileAnalysis),
	}

	type hashes struct {
		read    []string
		written map[string]struct{}
		readSet map[string]struct{}
		wrote   []string
	}
	perFile := make(map[string]*hashes)

	fileEntry := func(url string) (*FileAnalysis, *hashes) {
		fa, ok := a.FileData[url]
		if !ok {
			fa = &FileAnalysis{MismatchingReads: []string{}, MismatchingWrites: []string{}}
			a.FileData[url] = fa
			perFile[url] = &hashes{
				written: make(map[string]struct{}),
				readSet: make(map[string]struct{}),
			}
		}
		return fa, perFile[url]
	}

	for _, url := range t.Message.FileURL {
		fileEntry(url)
	}

	for _, ev := range t.Logs {
		switch ev.Type {
		case StatusReadFile:
			a.ReadFileCount++
			if ev.File != "" {
				fa, _ := fileEntry(ev.File)
				fa.ReadFile++
			}
		case StatusReadData:
			a.ReadDataCount++
			if ev.File != "" {
				fa, h := fileEntry(ev.File)
				fa.ReadData++
				if ev.Hash != "" {
					h.read = append(h.read, ev.Hash)
					h.readSet[ev.Hash] = struct{}{}
				}
			}
		case StatusWrittenData:
			a.WrittenDataCount++
			if ev.File != "" {
				fa, h := fileEntry(ev.File)
				fa.WrittenData++
				if ev.Hash != "" {
					h.wrote = append(h.wrote, ev.Hash)
					h.written[ev.Hash] = struct{}{}
				}
			}
		}
	}

	for url, h := range perFile {
		fa := a.FileData[url]
		for _, hash := range h.read {
			if _, ok := h.written[hash]; !ok {
				fa.MismatchingReads = append(fa.MismatchingReads, hash)
			}
		}
		for _, hash := range h.wrote {
			if _, ok := h.readSet[hash]; !ok {
				fa.MismatchingWrites = append(fa.MismatchingWrites, hash)
			}
		}
	}

	a.FileDataCount = len(a.FileData)
	return a
}
