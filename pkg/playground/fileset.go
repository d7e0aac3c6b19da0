package playground

// fileSet is an insertion-ordered map of filename to *File. It is not safe
// for concurrent use; the Store serializes access.
type fileSet struct {
	order []string
	files map[string]*File
}

func newFileSet() *fileSet {
	return &fileSet{
		files: make(map[string]*File),
	}
}

// Get retrieves a file by name
func (s *fileSet) Get(filename string) (*File, bool) {
	file, ok := s.files[filename]
	return file, ok
}

// Has checks if a name is present
func (s *fileSet) Has(filename string) bool {
	_, ok := s.files[filename]
	return ok
}

// Set stores a file under a name. An existing key keeps its position and
// the previous value is returned.
func (s *fileSet) Set(filename string, file *File) (*File, bool) {
	prev, ok := s.files[filename]
	if !ok {
		s.order = append(s.order, filename)
	}
	s.files[filename] = file
	return prev, ok
}

// Delete removes a name and returns the removed file
func (s *fileSet) Delete(filename string) (*File, bool) {
	file, ok := s.files[filename]
	if !ok {
		return nil, false
	}
	delete(s.files, filename)
	for i, name := range s.order {
		if name == filename {
			s.order = append(s.order[:i], s.order[i+1:]...)
			break
		}
	}
	return file, true
}

// Rekey moves the value at oldName to newName at the same position. If
// newName already held another file, that entry is dropped and returned.
func (s *fileSet) Rekey(oldName, newName string) (*File, bool) {
	file, ok := s.files[oldName]
	if !ok || oldName == newName {
		return nil, false
	}

	displaced, hadDisplaced := s.files[newName]
	order := make([]string, 0, len(s.order))
	for _, name := range s.order {
		switch name {
		case oldName:
			order = append(order, newName)
		case newName:
			// dropped, the renamed entry takes over the key
		default:
			order = append(order, name)
		}
	}

	delete(s.files, oldName)
	s.files[newName] = file
	s.order = order
	return displaced, hadDisplaced
}

// Names returns filenames in order
func (s *fileSet) Names() []string {
	return append([]string(nil), s.order...)
}

// Values returns files in order
func (s *fileSet) Values() []*File {
	out := make([]*File, 0, len(s.order))
	for _, name := range s.order {
		out = append(out, s.files[name])
	}
	return out
}

// First returns the first file in order
func (s *fileSet) First() (*File, bool) {
	if len(s.order) == 0 {
		return nil, false
	}
	return s.files[s.order[0]], true
}

// FirstVisible returns the first non-hidden file, or the first hidden one
// when every file is hidden
func (s *fileSet) FirstVisible() (*File, bool) {
	for _, name := range s.order {
		if f := s.files[name]; !f.Hidden {
			return f, true
		}
	}
	return s.First()
}

// Contains reports whether the exact pointer is one of the values
func (s *fileSet) Contains(file *File) bool {
	if file == nil {
		return false
	}
	current, ok := s.files[file.Filename]
	if ok && current == file {
		return true
	}
	for _, f := range s.files {
		if f == file {
			return true
		}
	}
	return false
}

// Len returns the number of files
func (s *fileSet) Len() int {
	return len(s.order)
}
