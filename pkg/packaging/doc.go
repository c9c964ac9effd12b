// Package packaging renders, inspects and verifies the container recipes
// that ship the agent service.
//
// Three variants share one boundary contract: the image is based on
// python:3.10-slim, exposes port 8080, runs `python run_ui.py`, sets
// PYTHONUNBUFFERED=1, puts /app on PYTHONPATH, installs requirements.txt
// before the application code is copied and always creates
// /app/python/helpers.
//
//	standard  single stage, system packages, pip install, copy source
//	layered   builder stage installs into /install, runtime stage copies it
//	helpers   like standard, but creates the helpers package directory
//	          before the source copy lands in it
//
// Render produces a Dockerfile for a Recipe, Inspect reads any Dockerfile
// back into a Contract and Verify reports where a Contract breaks a Recipe.
// For every variant v, Verify(Inspect(Render(v, r)), r) is empty.
package packaging
