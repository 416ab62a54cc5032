package build

import (
	"context"
	"os"
	"path/filepath"
	"runtime"
	"strconv"
	"strings"
)

// Makefile is the build description of a native library.
const Makefile = "Makefile"

const makefile = `-include PreMakefile

CXX ?= g++
CC ?= cc
DEBUG_FLAGS ?= -O2

FLAGS := -fPIC $(DEBUG_FLAGS) -DHOTSWAP $(EXT_DEFINES) $(EXT_CPPFLAGS) -I.
LDFLAGS := -shared $(EXT_LDFLAGS)

TARGET_LIB := $(LIB_NAME)

SUBDIRS := $(wildcard */)
CPP_SOURCES := $(wildcard *.cpp $(addsuffix *.cpp,$(SUBDIRS)))
C_SOURCES := $(wildcard *.c $(addsuffix *.c,$(SUBDIRS)))
OBJ_DIR := obj
OBJ_FILES := $(addprefix $(OBJ_DIR)/,$(notdir $(CPP_SOURCES:.cpp=.o) $(C_SOURCES:.c=.o)))

all: $(TARGET_LIB)
	@echo Compilation complete

$(TARGET_LIB): $(OBJ_FILES)
	@echo Linking objects
	$(CXX) $(LDFLAGS) -o $@ $^

$(OBJ_DIR)/%.o: %.cpp | $(OBJ_DIR)
	@echo Compiling file $@
	$(CXX) $(FLAGS) -c -o $@ $^

$(OBJ_DIR)/%.o: */%.cpp | $(OBJ_DIR)
	@echo Compiling file $@
	$(CXX) $(FLAGS) -c -o $@ $^

$(OBJ_DIR)/%.o: %.c | $(OBJ_DIR)
	@echo Compiling file $@
	$(CC) $(FLAGS) -c -o $@ $^

$(OBJ_DIR)/%.o: */%.c | $(OBJ_DIR)
	@echo Compiling file $@
	$(CC) $(FLAGS) -c -o $@ $^

$(OBJ_DIR):
	mkdir -p $(OBJ_DIR)

clean:
	rm -rf $(OBJ_DIR) $(TARGET_LIB)

.PHONY: all clean
`

// Make builds a native shared library of all C and C++ sources in the library directory (and its direct
// subdirectories) with a generated Makefile. Extra flags go to an optional PreMakefile.
type Make struct {
	Make string //make executable, default make
}

// MakefileFor returns the Makefile content producing the library named lib.
func MakefileFor(lib string) string {
	return strings.ReplaceAll(makefile, "$(LIB_NAME)", lib)
}

func (k Make) Extension() string {
	if runtime.GOOS == "windows" {
		return ".dll"
	}
	return ".so"
}

func (k Make) Describe(_ context.Context, _ Runner, _ *Module, lib string) error {
	return os.WriteFile(filepath.Join(filepath.Dir(lib), Makefile), []byte(MakefileFor(filepath.Base(lib))), 0o644)
}

func (k Make) Command(_ *Module, _ string, jobs int) (string, []string, error) {
	name := k.Make
	if name == "" {
		name = "make"
		if runtime.GOOS == "windows" {
			name = "mingw32-make"
		}
	}
	return name, []string{"-j" + strconv.Itoa(jobs)}, nil
}
